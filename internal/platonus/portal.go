package platonus

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	entryPath   = "/mail?type=1"
	composePath = "/messageedit?type=1&state=2"
	searchPath  = "/template.html#/students"
)

const (
	selectorLoginInput      = "#login_input"
	selectorPasswordInput   = "#pass_input"
	selectorLoginSubmit     = "#Submit1"
	selectorRecordRow       = "tr[ng-repeat='student in vm.students']"
	selectorRecordLink      = "a[ng-href^='template.html#/student/']"
	selectorDetailMarker    = "select[name='courseNumber']"
	selectorSubject         = "#theme"
	selectorEditor          = ".note-editable"
	selectorSend            = `input[name="send"]`
	selectorRecipientSearch = `input[name="search"]`
	selectorRecipientFind   = `button[name="find"]`
)

func recipientSelector(internalId string) string {
	return fmt.Sprintf(`input[name="to%s"]`, internalId)
}

// every facet of the student search other than the identifier, in the order
// the portal itself writes them. state=1 keeps the search to active records.
var searchFacets = [][2]string{
	{"facultyID", "0"},
	{"gender", "0"},
	{"fundingProgram", "0"},
	{"participantProgram", "0"},
	{"year", "0"},
	{"cafedraID", "0"},
	{"professionID", "0"},
	{"specializationID", "0"},
	{"sGroupID", "0"},
	{"course", "0"},
	{"studyFormID", "0"},
	{"departmentID", "0"},
	{"state", "1"},
	{"academic_mobility", "0"},
	{"studyLanguageID", "0"},
	{"paymentFormID", "0"},
	{"militaryID", "0"},
	{"conditionally_enrolled", "2"},
	{"degreeID", "0"},
	{"grantTypeID", "0"},
	{"professionTypeID", "0"},
	{"centerTrainingDirectionsID", "0"},
	{"differentiatedGrant", "0"},
}

func joinPath(baseUrl, path string) string {
	return strings.TrimRight(baseUrl, "/") + path
}

// SearchURL is the student listing filtered down to the given identifier.
func SearchURL(baseUrl, identifier string, pageSize int) string {
	var out strings.Builder
	out.WriteString(joinPath(baseUrl, searchPath))
	out.WriteString("?page=1&countInPart=")
	out.WriteString(strconv.Itoa(pageSize))
	out.WriteString("&search=")
	out.WriteString(url.QueryEscape(identifier))
	for _, facet := range searchFacets {
		out.WriteString("&")
		out.WriteString(facet[0])
		out.WriteString("=")
		out.WriteString(facet[1])
	}
	return out.String()
}

func composeBody(caption, code string) string {
	if code == "" {
		return caption
	}
	return caption + " code " + code
}

// editorScript replaces the contents of the summernote editor behind the
// composition form. It evaluates to true so the result can be returned by value.
func editorScript(body string) string {
	quoted, err := json.Marshal(body)
	if err != nil {
		// marshalling a string cannot fail
		panic(err)
	}
	return fmt.Sprintf("$('#summernote').summernote('code', %s); true", quoted)
}
