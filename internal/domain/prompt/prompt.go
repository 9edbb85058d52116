// Package prompt assembles the model-ready message list for a chat turn.
package prompt

import (
	"strings"

	"github.com/syltwerk/hotelchat/internal/domain/chat"
)

// BaseInstruction is the fixed German system instruction sent with every request.
const BaseInstruction = "Du bist ein hilfreicher, präziser Hotel-Assistent. Antworte auf Deutsch. " +
	"Nutze die bereitgestellten Hotelinformationen (FAQ) als primäre Quelle. " +
	"Erwähne niemals, dass Informationen im bereitgestellten Kontext fehlen oder dass dir ein Kontext vorliegt. " +
	"Wenn du etwas nicht sicher weißt, verweise freundlich auf die Rezeption und nenne dabei E-Mail-Adresse und Telefonnummer, wenn du sie kennst. " +
	"WICHTIG: Gib alle URLs in deinen Antworten IMMER als klickbare HTML-Links aus, z. B. <a href=\"https://beispiel.de\">https://beispiel.de</a>. " +
	"Verwende ausschließlich schlichte HTML-Links ohne zusätzliche Styles oder Klassen."

const (
	contextHeading  = "Kontext – Hotel: "
	noContextMarker = "(kein spezieller Kontext gefunden)"
)

// Input carries everything the prompt depends on.
type Input struct {
	HotelName    string
	PromptExtra  string
	Context      string
	Conversation []chat.Message
}

// Build returns [base instruction, hotel context, ...conversation].
// The conversation slice is copied, never aliased.
func Build(in Input) []chat.Message {
	instruction := BaseInstruction
	if extra := strings.TrimSpace(in.PromptExtra); extra != "" {
		instruction += " " + extra
	}

	ctx := strings.TrimSpace(in.Context)
	if ctx == "" {
		ctx = noContextMarker
	}

	out := make([]chat.Message, 0, len(in.Conversation)+2)
	out = append(out,
		chat.Message{Role: chat.RoleSystem, Content: instruction},
		chat.Message{Role: chat.RoleSystem, Content: contextHeading + in.HotelName + "\n\n" + ctx},
	)
	return append(out, in.Conversation...)
}
