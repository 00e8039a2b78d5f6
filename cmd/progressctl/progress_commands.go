package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/yungbote/coursehub-backend/internal/app"
	"github.com/yungbote/coursehub-backend/internal/services"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withToolkit(cmd, func(tk *app.Toolkit) error {
				if err := tk.Migrate(); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Schema up to date")
				return nil
			})
		},
	}
}

func newResetCommand(ctx *commandContext) *cobra.Command {
	var userID, courseID string
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete a user's progress for one course or all courses",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			var course *string
			if courseID != "" {
				course = &courseID
			}
			return ctx.withToolkit(cmd, func(tk *app.Toolkit) error {
				n, err := tk.Services.Progress.ResetProgress(cmd.Context(), userID, course)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, map[string]any{"deletedItems": n})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d progress rows\n", n)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&courseID, "course", "", "Course id (all courses when empty)")
	return cmd
}

func newDebugCommand(ctx *commandContext) *cobra.Command {
	var userID, courseID string
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Show stored course and lesson progress for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			if err := requireFlag("course", courseID); err != nil {
				return err
			}
			return ctx.withToolkit(cmd, func(tk *app.Toolkit) error {
				dbg, err := tk.Services.Progress.DebugCourse(cmd.Context(), userID, courseID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, dbg)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderDebug(dbg))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&courseID, "course", "", "Course id")
	return cmd
}

func renderDebug(dbg *services.CourseDebug) string {
	summary := "No course progress stored"
	if cp := dbg.CourseProgress; cp != nil {
		summary = fmt.Sprintf("Course %s: %d%% (%d/%d lessons), current lesson %q",
			cp.CourseID, cp.ProgressPercentage, cp.CompletedLessons, cp.TotalLessons, cp.CurrentLessonID)
	}
	rows := make([][]string, 0, len(dbg.Lessons))
	for _, lp := range dbg.Lessons {
		duration := "-"
		if lp.TotalDuration != nil {
			duration = formatSeconds(*lp.TotalDuration)
		}
		rows = append(rows, []string{
			lp.LessonID,
			strconv.Itoa(lp.ProgressPercentage) + "%",
			formatSeconds(lp.WatchTime),
			duration,
			strconv.FormatBool(lp.Completed),
			formatTime(lp.LastAccessedAt),
		})
	}
	return summary + "\n" + renderTable(
		[]string{"Lesson", "Progress", "Watched", "Duration", "Completed", "Last access"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize a user's progress across courses",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			return ctx.withToolkit(cmd, func(tk *app.Toolkit) error {
				stats, err := tk.Services.Progress.GetUserProgressStats(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderStats(stats))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	return cmd
}

func renderStats(s *services.UserProgressStats) string {
	rows := [][]string{
		{"Courses", strconv.Itoa(s.TotalCourses)},
		{"In progress", strconv.Itoa(s.CoursesInProgress)},
		{"Completed", strconv.Itoa(s.CoursesCompleted)},
		{"Lessons tracked", strconv.Itoa(s.TotalLessonsTracked)},
		{"Lessons completed", strconv.Itoa(s.TotalLessonsCompleted)},
		{"Watch time", formatSeconds(s.TotalWatchTime)},
		{"Average progress", strconv.Itoa(s.AverageProgress) + "%"},
	}
	return renderTable([]string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
}

func newRecentCommand(ctx *commandContext) *cobra.Command {
	var userID string
	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List courses the user touched recently",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireFlag("user", userID); err != nil {
				return err
			}
			return ctx.withToolkit(cmd, func(tk *app.Toolkit) error {
				recent, err := tk.Services.Progress.GetRecentCourseActivity(cmd.Context(), userID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, recent)
				}
				if len(recent) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No recent activity")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderRecent(recent))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	return cmd
}

func renderRecent(items []services.RecentCourseActivity) string {
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		rows = append(rows, []string{
			it.Title,
			string(it.Kind) + "/" + it.Slug,
			strconv.Itoa(it.ProgressPercentage) + "%",
			fmt.Sprintf("%d/%d", it.CompletedLessons, it.TotalLessons),
			it.CurrentLessonID,
			formatTime(it.LastAccessedAt),
		})
	}
	return renderTable(
		[]string{"Title", "Content", "Progress", "Lessons", "Current", "Last access"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft},
	)
}

func formatSeconds(secs float64) string {
	return (time.Duration(secs * float64(time.Second))).Round(time.Second).String()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
