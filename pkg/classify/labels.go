package classify

import (
	"regexp"
	"time"

	"github.com/codegraph-dev/codegraph/pkg/githistory"
)

// bootstrapRecentCommits caps how far back fix-commit mining looks.
const bootstrapRecentCommits = 500

// staleCodeDays is the "untouched long enough to presume fixed" threshold.
const staleCodeDays = 180

// LabelSource records where a weak label came from.
type LabelSource string

// Supported label sources.
const (
	SourceFixCommit  LabelSource = "FixCommit"
	SourceStableCode LabelSource = "StableCode"
)

// Label is a weak supervision signal for one file: whether history
// suggests it recently carried a true-positive issue (touched by a fix
// commit) or is stable enough to presume false-positive-prone (untouched
// past the staleness threshold).
type Label struct {
	Path        string
	IsTruePositive bool
	Weight      float64
	Source      LabelSource
}

// fixCommitPattern matches commit-message verbs that typically accompany a
// bug fix (spec "bootstrap label mining").
var fixCommitPattern = regexp.MustCompile(`(?i)\b(fix|fixes|fixed|bug|patch|hotfix|resolve|resolves|resolved)\b`)

// MineLabels scans the most recent commits for fix-flavored messages to
// build a weak "true positive" label set, and flags files whose most recent
// touch is older than the staleness threshold as weak "false positive"
// candidates (spec "bootstrap label mining").
func MineLabels(hist *githistory.History) ([]Label, error) {
	commits, err := hist.RecentCommits(nil)
	if err != nil {
		return nil, err
	}

	if len(commits) > bootstrapRecentCommits {
		commits = commits[:bootstrapRecentCommits]
	}

	fixFiles := make(map[string]struct{})

	for _, c := range commits {
		if !fixCommitPattern.MatchString(c.Message) {
			continue
		}

		for _, f := range c.Files {
			fixFiles[f] = struct{}{}
		}
	}

	churn, err := hist.RepoChurn()
	if err != nil {
		return nil, err
	}

	now := nowUTC()

	labels := make([]Label, 0, len(churn))

	for path, fc := range churn {
		if _, ok := fixFiles[path]; ok {
			labels = append(labels, Label{Path: path, IsTruePositive: true, Weight: 0.7, Source: SourceFixCommit})

			continue
		}

		if fc.LastModified != nil && now.Sub(*fc.LastModified) > staleCodeDays*24*time.Hour {
			labels = append(labels, Label{Path: path, IsTruePositive: false, Weight: 0.5, Source: SourceStableCode})
		}
	}

	return labels, nil
}
