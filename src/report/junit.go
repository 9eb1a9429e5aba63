package report

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sofmeright/imagefreight/src/build"
)

// JUnit XML types for CI test reporting.

type JUnitTestSuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []JUnitTestSuite `xml:"testsuite"`
}

type JUnitTestSuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []JUnitTestCase `xml:"testcase"`
}

type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
	Skipped   *JUnitSkipped `xml:"skipped,omitempty"`
}

type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

type JUnitSkipped struct {
	Message string `xml:"message,attr"`
}

// JUnitFile is the report file name inside the JUnit directory.
const JUnitFile = "build.xml"

// BuildJUnit groups entries into one suite per library and one case per
// image tag. Suites follow first-seen library order; cases follow sequence.
func BuildJUnit(entries []Entry, elapsed time.Duration) JUnitTestSuites {
	sorted := append([]Entry(nil), entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Task.Seq < sorted[j].Task.Seq })

	index := make(map[string]int)
	var suites []JUnitTestSuite
	var durations []time.Duration
	root := JUnitTestSuites{
		Name: "imagefreight-build",
		Time: fmt.Sprintf("%.3f", elapsed.Seconds()),
	}

	for _, e := range sorted {
		i, ok := index[e.Task.Library]
		if !ok {
			i = len(suites)
			index[e.Task.Library] = i
			suites = append(suites, JUnitTestSuite{Name: "imagefreight/build/" + e.Task.Library})
			durations = append(durations, 0)
		}
		suite := &suites[i]
		durations[i] += e.Outcome.Duration

		tc := JUnitTestCase{
			Name:      e.Task.Tag,
			Classname: "imagefreight.build." + e.Task.Library,
			Time:      fmt.Sprintf("%.3f", e.Outcome.Duration.Seconds()),
		}
		switch e.Outcome.Kind {
		case build.Skipped:
			tc.Skipped = &JUnitSkipped{Message: "image already exists"}
			suite.Skipped++
			root.Skipped++
		case build.BuildFailed, build.PushFailed:
			body := e.Outcome.Output
			if e.Outcome.Err != nil {
				body = e.Outcome.Err.Error() + "\n" + body
			}
			tc.Failure = &JUnitFailure{
				Message: fmt.Sprintf("%s: %s", e.Outcome.Kind, e.Outcome.Command),
				Type:    e.Outcome.Kind.String(),
				Body:    body,
			}
			suite.Failures++
			root.Failures++
		}

		suite.Cases = append(suite.Cases, tc)
		suite.Tests++
		root.Tests++
	}

	for i := range suites {
		suites[i].Time = fmt.Sprintf("%.3f", durations[i].Seconds())
	}

	root.Suites = suites
	return root
}

// WriteJUnit writes the recorded outcomes as JUnit XML to dir/build.xml.
func (r *Reporter) WriteJUnit(dir string, elapsed time.Duration) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating report dir: %w", err)
	}

	root := BuildJUnit(r.Entries(), elapsed)

	path := filepath.Join(dir, JUnitFile)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.WriteString(xml.Header); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	enc := xml.NewEncoder(f)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return fmt.Errorf("encoding junit xml: %w", err)
	}
	if _, err := f.WriteString("\n"); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
