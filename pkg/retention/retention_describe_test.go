package retention_test

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/confvault/confvault/pkg/core"
	"github.com/confvault/confvault/pkg/gitdriver"
	"github.com/confvault/confvault/pkg/ignorefile"
	"github.com/confvault/confvault/pkg/retention"
)

// commitAt writes path with content and commits it with author/committer
// dates pinned to at, the same way the retention engine's own baseline
// synthesis controls commit dates, so a test repo can simulate history aged
// years in a few milliseconds.
func commitAt(dir, path, content string, at time.Time) error {
	full := filepath.Join(dir, path)
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return err
	}
	if out, err := exec.Command("git", "-C", dir, "add", path).CombinedOutput(); err != nil {
		return fmt.Errorf("add: %w: %s", err, out)
	}
	cmd := exec.Command("git", "-C", dir, "commit", "-m", path)
	iso := at.UTC().Format(time.RFC3339)
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_DATE="+iso,
		"GIT_COMMITTER_DATE="+iso,
	)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("commit: %w: %s", err, out)
	}
	return nil
}

var _ = Describe("retention run", func() {
	var (
		dir    string
		driver *gitdriver.Driver
		ctx    context.Context
		cfgFn  func() ignorefile.Config
		now    time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		var err error
		dir, err = os.MkdirTemp("", "confvault-retention-*")
		Expect(err).NotTo(HaveOccurred())

		driver = gitdriver.New(dir, nil)
		Expect(driver.Init(ctx)).To(Succeed())
		Expect(driver.ConfigureIdentity(ctx, "confvault", "confvault@localhost")).To(Succeed())

		cfg := ignorefile.Config{Extensions: []string{"yaml"}}
		cfgFn = func() ignorefile.Config { return cfg }

		now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	})

	AfterEach(func() {
		_ = os.RemoveAll(dir)
	})

	Describe("a branch with a clear split point", func() {
		BeforeEach(func() {
			Expect(commitAt(dir, "a.yaml", "v0\n", now.Add(-10*24*time.Hour))).To(Succeed())
			Expect(commitAt(dir, "b.yaml", "v1\n", now.Add(-8*24*time.Hour))).To(Succeed())
			Expect(commitAt(dir, "c.yaml", "v2\n", now.Add(-2*24*time.Hour))).To(Succeed())
			Expect(commitAt(dir, "d.yaml", "v3\n", now.Add(-1*24*time.Hour))).To(Succeed())
			Expect(commitAt(dir, "e.yaml", "v4\n", now)).To(Succeed())
		})

		It("previews the same split the run will perform", func() {
			eng := retention.New(driver, cfgFn, nil)
			eng.SetClock(func() time.Time { return now })
			preview, err := eng.Preview(ctx, core.RetentionWindow{Days: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(preview.SplitFound).To(BeTrue())
			Expect(preview.MergedCount).To(Equal(2))
		})

		It("collapses the two oldest commits into one rootless baseline and keeps the rest contiguous", func() {
			eng := retention.New(driver, cfgFn, nil)
			eng.SetClock(func() time.Time { return now })
			result, err := eng.Run(ctx, core.RetentionWindow{Days: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.WithinWindow).To(BeFalse())
			Expect(result.MergedCount).To(Equal(2))
			Expect(result.SafetyBranch).To(HavePrefix("backup-before-cleanup-"))

			commits, err := driver.Log(ctx, core.LogFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(commits).To(HaveLen(4))
			Expect(commits[len(commits)-1].IsRoot()).To(BeTrue())
			Expect(commits[len(commits)-1].Subject).To(ContainSubstring("Merged history"))

			content, err := driver.FileAtCommit(ctx, "HEAD", "b.yaml")
			Expect(err).NotTo(HaveOccurred())
			Expect(string(content)).To(Equal("v1\n"))
		})

		It("rejects a concurrent run while one is in flight", func() {
			eng := retention.New(driver, cfgFn, nil)
			eng.SetClock(func() time.Time { return now })

			results := make(chan error, 2)
			start := make(chan struct{})
			go func() {
				<-start
				_, err := eng.Run(ctx, core.RetentionWindow{Days: 3})
				results <- err
			}()
			go func() {
				<-start
				_, err := eng.Run(ctx, core.RetentionWindow{Days: 3})
				results <- err
			}()
			close(start)

			first := <-results
			second := <-results
			// Exactly one of the two concurrent calls must observe the
			// in-flight run; both cannot succeed independently.
			succeeded := 0
			conflicted := 0
			for _, e := range []error{first, second} {
				switch {
				case e == nil:
					succeeded++
				default:
					conflicted++
				}
			}
			Expect(succeeded).To(BeNumerically("<=", 1))
			Expect(succeeded + conflicted).To(Equal(2))
		})
	})

	Describe("a branch entirely older than the cutoff", func() {
		BeforeEach(func() {
			Expect(commitAt(dir, "a.yaml", "v0\n", now.Add(-10*24*time.Hour))).To(Succeed())
			Expect(commitAt(dir, "b.yaml", "v1\n", now.Add(-9*24*time.Hour))).To(Succeed())
		})

		It("hard-resets to the synthetic baseline with no kept commits remaining", func() {
			eng := retention.New(driver, cfgFn, nil)
			eng.SetClock(func() time.Time { return now })
			result, err := eng.Run(ctx, core.RetentionWindow{Days: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.MergedCount).To(Equal(2))

			commits, err := driver.Log(ctx, core.LogFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(commits).To(HaveLen(1))
			Expect(commits[0].IsRoot()).To(BeTrue())
		})
	})

	Describe("a branch entirely within the retention window", func() {
		BeforeEach(func() {
			Expect(commitAt(dir, "a.yaml", "v0\n", now)).To(Succeed())
		})

		It("is a no-op and reports WithinWindow", func() {
			eng := retention.New(driver, cfgFn, nil)
			eng.SetClock(func() time.Time { return now })
			result, err := eng.Run(ctx, core.RetentionWindow{Days: 30})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.WithinWindow).To(BeTrue())

			commits, err := driver.Log(ctx, core.LogFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(commits).To(HaveLen(1))
		})
	})
})
