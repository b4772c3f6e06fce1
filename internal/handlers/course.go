package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/pillmate/pillmate/internal/cache"
	"github.com/pillmate/pillmate/internal/engine"
	"github.com/pillmate/pillmate/internal/models"
)

// courseByNumber resolves a 1-based course number from the /courses listing.
// Listing order is stable (start date, then title), so numbers stay valid
// between a listing and the follow-up command.
func courseByNumber(c *cache.Cache, arg string) (*models.Course, bool) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return nil, false
	}
	courses := c.Courses()
	if n > len(courses) {
		return nil, false
	}
	return &courses[n-1], true
}

// ---------------------------------------------------------------------------
// CoursesHandler – /courses
// ---------------------------------------------------------------------------

// CoursesHandler handles the /courses command to list medication courses
// with their adherence numbers.
type CoursesHandler struct {
	cache  *cache.Cache
	logger *logrus.Logger
}

// NewCoursesHandler creates a new CoursesHandler.
func NewCoursesHandler(c *cache.Cache, logger *logrus.Logger) *CoursesHandler {
	return &CoursesHandler{cache: c, logger: logger}
}

// Handle processes the /courses command.
func (h *CoursesHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	courses := h.cache.Courses()

	if len(courses) == 0 {
		msg := tgbotapi.NewMessage(message.Chat.ID,
			"💊 *No medication courses yet.*\n\nCreate one in the PillMate app to get started.")
		msg.ParseMode = tgbotapi.ModeMarkdown
		bot.Send(msg)
		return nil
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, formatCourseList(courses))
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)

	h.logger.WithFields(logrus.Fields{
		"chat_id": message.Chat.ID,
		"count":   len(courses),
	}).Info("Listed courses")

	return nil
}

// formatCourseList renders the numbered course listing. Course and slot
// numbers here are the ones /taken and /delcourse accept.
func formatCourseList(courses []models.Course) string {
	var sb strings.Builder
	sb.WriteString("💊 *Your Courses*\n\n")

	for i, course := range courses {
		sb.WriteString(fmt.Sprintf("%d. *%s* — %d%% taken (%d/%d)\n",
			i+1, course.Title,
			course.Statistics.TakenPercent,
			course.Statistics.TimesTaken,
			course.Statistics.TimesTotal))
		for j, slot := range course.DoseSlots {
			sb.WriteString(fmt.Sprintf("    %d) %02d:%02d %s\n",
				j+1, slot.Hour, slot.Minute, slot.DosageUnit))
		}
		sb.WriteString(fmt.Sprintf("    _until %s_\n", course.EndDate.Format("2006-01-02")))
	}

	sb.WriteString(fmt.Sprintf("\n_%d active courses_ — mark a dose with `/taken <course#> <slot#>`", len(courses)))
	return sb.String()
}

// ---------------------------------------------------------------------------
// DeleteCourseHandler – /delcourse <course#>
// ---------------------------------------------------------------------------

// DeleteCourseHandler handles the /delcourse command. Deleting a course also
// removes its dose history and pending reminders.
type DeleteCourseHandler struct {
	engine *engine.Engine
	cache  *cache.Cache
	logger *logrus.Logger
}

// NewDeleteCourseHandler creates a new DeleteCourseHandler.
func NewDeleteCourseHandler(eng *engine.Engine, c *cache.Cache, logger *logrus.Logger) *DeleteCourseHandler {
	return &DeleteCourseHandler{engine: eng, cache: c, logger: logger}
}

// Handle processes the /delcourse command.
func (h *DeleteCourseHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) == 0 {
		msg := tgbotapi.NewMessage(message.Chat.ID,
			"❌ Please provide a course number.\nUsage: `/delcourse 1`")
		msg.ParseMode = tgbotapi.ModeMarkdown
		bot.Send(msg)
		return nil
	}

	course, ok := courseByNumber(h.cache, args[0])
	if !ok {
		msg := tgbotapi.NewMessage(message.Chat.ID,
			"❌ No such course. Check the numbers with /courses.")
		msg.ParseMode = tgbotapi.ModeMarkdown
		bot.Send(msg)
		return nil
	}

	if err := h.engine.DeleteCourse(context.Background(), course.ID); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}

	text := fmt.Sprintf("🗑 Course *%s* deleted along with its history and reminders.", course.Title)
	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)

	h.logger.WithFields(logrus.Fields{
		"chat_id":   message.Chat.ID,
		"user_id":   message.From.ID,
		"course_id": course.ID,
	}).Info("Course deleted")

	return nil
}
