package platonus

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"platonus-notifier/internal/browser"

	"github.com/PuerkitoBio/goquery"
)

// fakeDriver is a scripted browser.Driver: selectors in `present` exist, pages
// are looked up by a substring of the current location and clicks can move the
// location somewhere else. Text and attributes are read from the current page.
type fakeDriver struct {
	mutex sync.Mutex

	present  map[string]bool
	pages    map[string]string
	onClick  map[string]string
	navErr   error
	panicOn  string
	location string
	// hangIdle makes network idle waits block until their context is done.
	hangIdle bool

	calls     []string
	waits     map[string]time.Duration
	filled    map[string]string
	evaluated []string
	checked   []string
	closed    int
}

func (d *fakeDriver) record(call string) {
	d.calls = append(d.calls, call)
}

func (d *fakeDriver) require(selector string) error {
	if d.panicOn == selector {
		panic("driver exploded at " + selector)
	}
	if !d.present[selector] {
		return fmt.Errorf("%w: %s: timed out", browser.ErrElementNotFound, selector)
	}
	return nil
}

func (d *fakeDriver) Navigate(ctx context.Context, url string, until browser.WaitUntil) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.record("navigate " + url)
	if d.navErr != nil {
		return d.navErr
	}
	d.location = url
	return nil
}

func (d *fakeDriver) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.record("wait " + selector)
	d.waits[selector] = timeout
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.require(selector)
}

func (d *fakeDriver) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	d.mutex.Lock()
	d.record("idle")
	hang := d.hangIdle
	d.mutex.Unlock()

	if hang {
		<-ctx.Done()
	}
	return ctx.Err()
}

func (d *fakeDriver) Fill(ctx context.Context, selector, value string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.record("fill " + selector)
	err := d.require(selector)
	if err != nil {
		return err
	}
	d.filled[selector] = value
	return nil
}

func (d *fakeDriver) Click(ctx context.Context, selector string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.record("click " + selector)
	err := d.require(selector)
	if err != nil {
		return err
	}
	if location, ok := d.onClick[selector]; ok {
		d.location = location
	}
	return nil
}

func (d *fakeDriver) Check(ctx context.Context, selector string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.record("check " + selector)
	err := d.require(selector)
	if err != nil {
		return err
	}
	d.checked = append(d.checked, selector)
	return nil
}

func (d *fakeDriver) Evaluate(ctx context.Context, expression string) error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.record("evaluate")
	d.evaluated = append(d.evaluated, expression)
	return nil
}

// find selects from the current page, a missing node times out like a
// browser would.
func (d *fakeDriver) find(selector string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(d.page()))
	if err != nil {
		return nil, err
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return nil, fmt.Errorf("%w: %s: timed out", browser.ErrElementNotFound, selector)
	}
	return sel, nil
}

// ReadText is a rough innerText: hidden elements are dropped and whitespace
// is collapsed the way rendering does.
func (d *fakeDriver) ReadText(ctx context.Context, selector string) (string, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.record("text " + selector)
	sel, err := d.find(selector)
	if err != nil {
		return "", err
	}
	sel = sel.Clone()
	sel.Find(`.ng-hide, [style*="display:none"], [style*="display: none"]`).Remove()
	return strings.Join(strings.Fields(sel.Text()), " "), nil
}

func (d *fakeDriver) ReadAttribute(ctx context.Context, selector, name string) (string, bool, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.record("attribute " + selector)
	sel, err := d.find(selector)
	if err != nil {
		return "", false, err
	}
	value, ok := sel.Attr(name)
	return value, ok, nil
}

func (d *fakeDriver) page() string {
	for key, markup := range d.pages {
		if strings.Contains(d.location, key) {
			return markup
		}
	}
	return "<html><body></body></html>"
}

func (d *fakeDriver) Content(ctx context.Context) (string, error) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.record("content")
	return d.page(), nil
}

func (d *fakeDriver) Close() error {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.closed++
	return nil
}

func (d *fakeDriver) called(prefix string) int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	n := 0
	for _, call := range d.calls {
		if strings.HasPrefix(call, prefix) {
			n++
		}
	}
	return n
}

type fakeLauncher struct {
	newDriver func() *fakeDriver
	err       error
	drivers   []*fakeDriver
}

func (l *fakeLauncher) Launch(ctx context.Context) (browser.Driver, error) {
	if l.err != nil {
		return nil, l.err
	}
	driver := l.newDriver()
	l.drivers = append(l.drivers, driver)
	return driver, nil
}

func (l *fakeLauncher) last() *fakeDriver {
	return l.drivers[len(l.drivers)-1]
}

func resultRow(href string, cells ...string) string {
	var out strings.Builder
	out.WriteString(`<tr ng-repeat="student in vm.students" class="ng-scope">`)
	out.WriteString(`<td><a ng-href="` + href + `" href="` + href + `">` + cells[0] + `</a></td>`)
	for _, cell := range cells[1:] {
		out.WriteString("<td>\n\t\t" + cell + "\n\t</td>")
	}
	out.WriteString("</tr>")
	return out.String()
}

func searchPage(rows ...string) string {
	return `<html><body><table class="table"><thead><tr><th>FIO</th></tr></thead><tbody>` +
		strings.Join(rows, "") +
		`</tbody></table></body></html>`
}

const (
	loginPage   = `<html><body><form><input id="login_input"><input id="pass_input"><input id="Submit1" type="submit"></form></body></html>`
	homePage    = `<html><body><div class="navbar">Staff</div></body></html>`
	detailPage  = `<html><body><h1>Jonas Jonaitis</h1><select name="courseNumber"><option>1</option></select></body></html>`
	composePage = `<html><body><input id="theme"><div class="note-editable"></div></body></html>`
)

// newPortalDriver is a portal where everything goes right for the record of
// the given search page.
func newPortalDriver(search string) *fakeDriver {
	present := map[string]bool{}
	for _, selector := range []string{
		selectorLoginInput,
		selectorPasswordInput,
		selectorLoginSubmit,
		recordLinkSelector,
		selectorDetailMarker,
		selectorSubject,
		selectorEditor,
		selectorSend,
		selectorRecipientSearch,
		selectorRecipientFind,
		recipientSelector("4711"),
	} {
		present[selector] = true
	}

	return &fakeDriver{
		present: present,
		pages: map[string]string{
			"/mail":        loginPage,
			"/home":        homePage,
			"#/students":   search,
			"#/student/":   detailPage,
			"/messageedit": composePage,
		},
		onClick: map[string]string{
			selectorLoginSubmit: "https://portal.test/home",
			recordLinkSelector:  "https://portal.test/template.html#/student/4711",
		},
		waits:  map[string]time.Duration{},
		filled: map[string]string{},
	}
}
