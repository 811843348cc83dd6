package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"algo-viz/api/internal/pipeline"
)

const helpText = `Describe an algorithm and I will animate it.

Examples:
• Sort [5, 1, 4, 2, 8] with bubble sort
• 5x5 input, 3x3 kernel, stride 1, padding 1
• "I want to play" 라는 문장에서 다음 단어를 예측해줘

Commands: /engine, /domain <label|off>, /route <label>, /health`

const enginePrefix = "engine:"

func makeEngineKeyboard(engines []string) tgbotapi.InlineKeyboardMarkup {
	row := make([]tgbotapi.InlineKeyboardButton, 0, len(engines))
	for _, e := range engines {
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(e, enginePrefix+e))
	}
	return tgbotapi.NewInlineKeyboardMarkup(row)
}

func caption(resp *pipeline.Response) string {
	c := fmt.Sprintf("%s · %s", resp.Domain, resp.PatternType)
	if len(resp.Warnings) > 0 {
		c += fmt.Sprintf("\n⚠️ %d warning(s) in the pseudocode IR", len(resp.Warnings))
	}
	return c
}

// formatResponse renders a response without an artifact as plain text.
func formatResponse(resp *pipeline.Response) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Domain: %s\nPattern: %s\n", resp.Domain, resp.PatternType)
	switch {
	case resp.Invalid():
		b.WriteString("\nThe extracted parameters are invalid:\n")
		for _, e := range resp.Errors {
			fmt.Fprintf(&b, "• %s: %s\n", e.Field, e.Message)
		}
	case resp.Message != "":
		fmt.Fprintf(&b, "\n%s: no renderer for this pattern yet.\n", resp.Message)
	case resp.VideoPath != "":
		fmt.Fprintf(&b, "\nVideo: %s\n", resp.VideoPath)
	default:
		b.WriteString("\nNothing was rendered.\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
