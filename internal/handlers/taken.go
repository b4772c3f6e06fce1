package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"github.com/pillmate/pillmate/internal/cache"
	"github.com/pillmate/pillmate/internal/engine"
)

// TakenHandler handles the /taken command to toggle today's dose for a slot.
// Toggling an already-taken dose reverts it, so a mistaken tap is undone by
// repeating the command.
type TakenHandler struct {
	engine *engine.Engine
	cache  *cache.Cache
	logger *logrus.Logger
}

// NewTakenHandler creates a new TakenHandler.
func NewTakenHandler(eng *engine.Engine, c *cache.Cache, logger *logrus.Logger) *TakenHandler {
	return &TakenHandler{engine: eng, cache: c, logger: logger}
}

// Handle processes the /taken command.
func (h *TakenHandler) Handle(bot *tgbotapi.BotAPI, message *tgbotapi.Message, args []string) error {
	if len(args) < 2 {
		msg := tgbotapi.NewMessage(message.Chat.ID,
			"❌ Please provide a course and slot number.\nUsage: `/taken 1 2` marks the second dose of course 1.")
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

	slotNum, err := strconv.Atoi(args[1])
	if err != nil || slotNum < 1 {
		msg := tgbotapi.NewMessage(message.Chat.ID,
			"❌ Invalid slot number. Slot 1 is the first dose of the day.")
		msg.ParseMode = tgbotapi.ModeMarkdown
		bot.Send(msg)
		return nil
	}

	text, err := h.toggle(course.ID, course.Title, slotNum-1)
	if err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(message.Chat.ID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	bot.Send(msg)

	h.logger.WithFields(logrus.Fields{
		"chat_id":   message.Chat.ID,
		"user_id":   message.From.ID,
		"course_id": course.ID,
		"slot":      slotNum - 1,
	}).Info("Toggled dose")

	return nil
}

// HandleCallback processes "take:" callback data of the form
// "<courseID>:<slot>" attached to reminder messages.
func (h *TakenHandler) HandleCallback(bot *tgbotapi.BotAPI, query *tgbotapi.CallbackQuery, data string) error {
	parts := strings.SplitN(data, ":", 2)
	if len(parts) != 2 {
		return fmt.Errorf("malformed callback data %q", data)
	}
	slot, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("malformed slot in callback data %q", data)
	}

	course, ok := h.cache.Course(parts[0])
	title := parts[0]
	if ok {
		title = course.Title
	}

	text, err := h.toggle(parts[0], title, slot)
	if err != nil {
		return err
	}

	if query.Message != nil {
		msg := tgbotapi.NewMessage(query.Message.Chat.ID, text)
		msg.ParseMode = tgbotapi.ModeMarkdown
		bot.Send(msg)
	}
	return nil
}

func (h *TakenHandler) toggle(courseID, title string, slot int) (string, error) {
	record, err := h.engine.ToggleOccurrence(context.Background(), courseID, slot)

	var verr *engine.ValidationError
	switch {
	case errors.Is(err, engine.ErrCourseNotFound):
		return "❌ That course no longer exists.", nil
	case errors.As(err, &verr):
		return fmt.Sprintf("❌ %s", verr.Reason), nil
	case err != nil:
		return "", fmt.Errorf("toggle occurrence: %w", err)
	}

	if record.IsTaken {
		return fmt.Sprintf("✅ *%s* — dose %d marked as taken.", title, record.SlotIndex+1), nil
	}
	return fmt.Sprintf("↩️ *%s* — dose %d unmarked.", title, record.SlotIndex+1), nil
}
