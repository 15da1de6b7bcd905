package platonus

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"platonus-notifier/internal/browser"
	"platonus-notifier/internal/components/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testIdentifier = "123456789012"

var jonasRow = resultRow("template.html#/student/4711", "Jonas Jonaitis", "Full-time", "Active")

func testOptions() Options {
	opts := DefaultOptions()
	opts.BaseURL = "https://portal.test"
	opts.Credentials = Credentials{Username: "staff", Password: "secret"}
	return opts
}

func newTestWorkflow(t testing.TB, opts Options, launcher *fakeLauncher) (*Workflow, *telemetry.Recorder) {
	recorder := &telemetry.Recorder{}
	workflow, err := NewWorkflow(opts, launcher, recorder)
	require.NoError(t, err)
	return workflow, recorder
}

func portalLauncher(search string, tweak func(d *fakeDriver)) *fakeLauncher {
	return &fakeLauncher{newDriver: func() *fakeDriver {
		driver := newPortalDriver(search)
		if tweak != nil {
			tweak(driver)
		}
		return driver
	}}
}

func TestRunScenario(t *testing.T) {
	launcher := portalLauncher(searchPage(jonasRow), nil)
	workflow, _ := newTestWorkflow(t, testOptions(), launcher)

	result, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier, Code: "A-17"})
	require.NoError(t, err)

	expected := Result{
		DetailDocument:   DetailDocument(detailPage),
		SearchIdentifier: testIdentifier,
		DisplayName:      "Jonas Jonaitis",
		InternalId:       "4711",
		Fields:           []string{"Jonas Jonaitis", "Full-time", "Active"},
	}
	if diff := cmp.Diff(expected, result); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}

	driver := launcher.last()
	require.Equal(t, 1, driver.closed)
	require.Equal(t, "staff", driver.filled[selectorLoginInput])
	require.Equal(t, "secret", driver.filled[selectorPasswordInput])
	require.Equal(t, "Test Notification", driver.filled[selectorSubject])
	require.Equal(t, "Jonas Jonaitis", driver.filled[selectorRecipientSearch])
	require.Equal(t, []string{editorScript("Test Notification code A-17")}, driver.evaluated)
	require.Equal(t, []string{recipientSelector("4711")}, driver.checked)
	require.Equal(t, 2, driver.called("click "+selectorSend))

	require.Equal(t, 5*time.Second, driver.waits[selectorDetailMarker])
	require.Equal(t, 10*time.Second, driver.waits[selectorSubject])
	require.Equal(t, 10*time.Second, driver.waits[recipientSelector("4711")])
	require.Equal(t, 10*time.Second, driver.waits[selectorSend], "the last wait on send is the final send")
}

func TestRunWithoutCode(t *testing.T) {
	launcher := portalLauncher(searchPage(jonasRow), nil)
	workflow, _ := newTestWorkflow(t, testOptions(), launcher)

	_, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
	require.NoError(t, err)
	require.Equal(t, []string{editorScript("Test Notification")}, launcher.last().evaluated)
}

func TestRunWorkflowErrors(t *testing.T) {
	cases := []struct {
		name     string
		search   string
		tweak    func(d *fakeDriver)
		expected []error
	}{
		{
			name:     "no matching record",
			search:   searchPage(),
			expected: []error{ErrRecordNotFound},
		},
		{
			name: "more than one matching record",
			search: searchPage(
				jonasRow,
				resultRow("template.html#/student/4712", "Jonas Jonaitis", "Part-time", "Active"),
			),
			expected: []error{ErrAmbiguousRecord},
		},
		{
			name:     "detail reference without numeric id",
			search:   searchPage(resultRow("template.html#/student/profile", "Jonas Jonaitis", "Full-time", "Active")),
			expected: []error{ErrRecipientNotFound},
		},
		{
			name:   "login form missing",
			search: searchPage(jonasRow),
			tweak: func(d *fakeDriver) {
				d.present[selectorPasswordInput] = false
			},
			expected: []error{ErrLoginFormNotFound, browser.ErrElementNotFound},
		},
		{
			name:   "subject field missing",
			search: searchPage(jonasRow),
			tweak: func(d *fakeDriver) {
				d.present[selectorSubject] = false
			},
			expected: []error{ErrCompositionFailed, browser.ErrElementNotFound},
		},
		{
			name:   "editor missing",
			search: searchPage(jonasRow),
			tweak: func(d *fakeDriver) {
				d.present[selectorEditor] = false
			},
			expected: []error{ErrCompositionFailed},
		},
		{
			name:   "send button missing",
			search: searchPage(jonasRow),
			tweak: func(d *fakeDriver) {
				d.present[selectorSend] = false
			},
			expected: []error{ErrSendFailed},
		},
		{
			name:   "recipient search missing",
			search: searchPage(jonasRow),
			tweak: func(d *fakeDriver) {
				d.present[selectorRecipientSearch] = false
			},
			expected: []error{ErrSendFailed},
		},
		{
			name:   "recipient not in picker",
			search: searchPage(jonasRow),
			tweak: func(d *fakeDriver) {
				d.present[recipientSelector("4711")] = false
			},
			expected: []error{ErrRecipientNotFound, browser.ErrElementNotFound},
		},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			launcher := portalLauncher(test.search, test.tweak)
			workflow, recorder := newTestWorkflow(t, testOptions(), launcher)

			_, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
			for _, target := range test.expected {
				require.ErrorIs(t, err, target)
			}
			require.True(t, IsWorkflowError(err))
			require.Equal(t, 1, launcher.last().closed)
			require.Len(t, recorder.Reports("warning"), 1)
		})
	}
}

func TestRunNonNumericIdLeavesNoDraft(t *testing.T) {
	launcher := portalLauncher(
		searchPage(resultRow("template.html#/student/profile", "Jonas Jonaitis", "Full-time", "Active")),
		nil,
	)
	workflow, _ := newTestWorkflow(t, testOptions(), launcher)

	_, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
	require.ErrorIs(t, err, ErrRecipientNotFound)
	require.Equal(t, 0, launcher.last().called("navigate https://portal.test/messageedit"))
	require.Equal(t, 0, launcher.last().called("click "+selectorSend))
}

func TestRunRecordNotFoundMentionsLogin(t *testing.T) {
	launcher := portalLauncher(searchPage(), nil)
	workflow, _ := newTestWorkflow(t, testOptions(), launcher)

	_, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
	require.ErrorIs(t, err, ErrRecordNotFound)
	require.Contains(t, err.Error(), "login")
}

func TestRunMissingIdentifier(t *testing.T) {
	for _, identifier := range []string{"", "   "} {
		launcher := portalLauncher(searchPage(jonasRow), nil)
		workflow, _ := newTestWorkflow(t, testOptions(), launcher)

		_, err := workflow.Run(context.Background(), Request{Identifier: identifier})
		require.ErrorIs(t, err, ErrMissingIdentifier)
		require.Empty(t, launcher.drivers, "no browser may be launched without an identifier")
	}
}

func TestNewWorkflowMissingConfiguration(t *testing.T) {
	launcher := portalLauncher(searchPage(jonasRow), nil)

	opts := testOptions()
	opts.Credentials = Credentials{}
	_, err := NewWorkflow(opts, launcher, &telemetry.Recorder{})
	require.ErrorIs(t, err, ErrMissingConfiguration)
	require.Contains(t, err.Error(), "username")
	require.Contains(t, err.Error(), "password")
	require.Empty(t, launcher.drivers)
}

func TestRunUnexpectedFaults(t *testing.T) {
	navErr := fmt.Errorf("%w: net::ERR_CONNECTION_REFUSED", browser.ErrNavigationFailed)

	t.Run("panic", func(t *testing.T) {
		launcher := portalLauncher(searchPage(jonasRow), func(d *fakeDriver) {
			d.panicOn = selectorEditor
		})
		workflow, recorder := newTestWorkflow(t, testOptions(), launcher)

		result, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
		require.ErrorIs(t, err, ErrUnexpected)
		require.False(t, IsWorkflowError(err))
		require.Equal(t, Result{}, result)
		require.Equal(t, 1, launcher.last().closed)
		require.Len(t, recorder.Reports("broken"), 1)
	})

	t.Run("navigation", func(t *testing.T) {
		launcher := portalLauncher(searchPage(jonasRow), func(d *fakeDriver) {
			d.navErr = navErr
		})
		workflow, _ := newTestWorkflow(t, testOptions(), launcher)

		_, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
		require.ErrorIs(t, err, browser.ErrNavigationFailed)
		require.False(t, IsWorkflowError(err))
		require.Equal(t, 1, launcher.last().closed)
	})

	t.Run("launch", func(t *testing.T) {
		launcher := &fakeLauncher{err: errors.New("chrome not installed")}
		workflow, _ := newTestWorkflow(t, testOptions(), launcher)

		_, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
		require.ErrorIs(t, err, ErrUnexpected)
	})
}

func TestRunDetailMarkerMissing(t *testing.T) {
	launcher := portalLauncher(searchPage(jonasRow), func(d *fakeDriver) {
		d.present[selectorDetailMarker] = false
		d.pages["#/student/"] = "<html><body>still loading</body></html>"
	})
	workflow, recorder := newTestWorkflow(t, testOptions(), launcher)

	result, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
	require.NoError(t, err)
	require.Equal(t, DetailDocument("<html><body>still loading</body></html>"), result.DetailDocument)

	warnings := recorder.Reports("warning")
	require.Len(t, warnings, 1)
	require.Equal(t, "platonus: "+report_workflow_harvest_detail, warnings[0].Id)
	require.Equal(t, 1, launcher.last().closed)
}

func TestRunStrict(t *testing.T) {
	t.Run("confirms sends", func(t *testing.T) {
		launcher := portalLauncher(searchPage(jonasRow), nil)
		opts := testOptions()
		opts.Strict = true
		workflow, _ := newTestWorkflow(t, opts, launcher)

		_, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
		require.NoError(t, err)

		lenient := portalLauncher(searchPage(jonasRow), nil)
		lenientWorkflow, _ := newTestWorkflow(t, testOptions(), lenient)
		_, err = lenientWorkflow.Run(context.Background(), Request{Identifier: testIdentifier})
		require.NoError(t, err)

		require.Equal(t, lenient.last().called("idle")+2, launcher.last().called("idle"))
	})

	t.Run("login rejected", func(t *testing.T) {
		launcher := portalLauncher(searchPage(jonasRow), func(d *fakeDriver) {
			delete(d.onClick, selectorLoginSubmit)
		})
		opts := testOptions()
		opts.Strict = true
		workflow, _ := newTestWorkflow(t, opts, launcher)

		_, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
		require.ErrorIs(t, err, ErrLoginRejected)
		require.True(t, IsWorkflowError(err))
		require.Equal(t, 1, launcher.last().closed)
	})
}

func TestRunIsRepeatable(t *testing.T) {
	launcher := portalLauncher(searchPage(jonasRow), nil)
	workflow, _ := newTestWorkflow(t, testOptions(), launcher)

	first, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
	require.NoError(t, err)
	second, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
	require.NoError(t, err)

	require.Len(t, launcher.drivers, 2, "every run gets its own session")
	require.Equal(t, first.DisplayName, second.DisplayName)
	if diff := cmp.Diff(first.Fields, second.Fields); diff != "" {
		t.Fatalf("fields differ between runs (-first +second):\n%s", diff)
	}
	for _, driver := range launcher.drivers {
		require.Equal(t, 1, driver.closed)
	}
}

func TestRunTypesRenderedDisplayName(t *testing.T) {
	row := `<tr ng-repeat="student in vm.students">` +
		`<td><a ng-href="template.html#/student/4711" href="template.html#/student/4711">
			Jonas
			Jonaitis
		</a></td><td>Full-time</td></tr>`
	launcher := portalLauncher(searchPage(row), nil)
	workflow, _ := newTestWorkflow(t, testOptions(), launcher)

	result, err := workflow.Run(context.Background(), Request{Identifier: testIdentifier})
	require.NoError(t, err)
	require.Equal(t, "Jonas Jonaitis", result.DisplayName)
	require.Equal(t, "Jonas Jonaitis", launcher.last().filled[selectorRecipientSearch])
}

func TestRunCancelledMidRun(t *testing.T) {
	launcher := portalLauncher(searchPage(jonasRow), func(d *fakeDriver) {
		d.hangIdle = true
	})
	workflow, recorder := newTestWorkflow(t, testOptions(), launcher)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	start := time.Now()
	_, err := workflow.Run(ctx, Request{Identifier: testIdentifier})
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), 5*time.Second)

	driver := launcher.last()
	require.Equal(t, 1, driver.closed)
	require.Equal(t, 0, driver.called("navigate https://portal.test/template.html"), "the run stops at the stalled wait")

	require.Empty(t, recorder.Reports("broken"))
	require.Len(t, recorder.Reports("warning"), 1)
}
