package enums

import "strings"

type InteractionType string

const (
	InteractionLike    InteractionType = "like"
	InteractionDislike InteractionType = "dislike"
	InteractionView    InteractionType = "view"
	InteractionMessage InteractionType = "message"
	InteractionBlock   InteractionType = "block"
	InteractionReport  InteractionType = "report"
)

var InteractionTypes = []InteractionType{
	InteractionLike,
	InteractionDislike,
	InteractionView,
	InteractionMessage,
	InteractionBlock,
	InteractionReport,
}

func (t InteractionType) Valid() bool {
	for _, value := range InteractionTypes {
		if value == t {
			return true
		}
	}
	return false
}

func ParseInteractionType(raw string) (InteractionType, bool) {
	value := InteractionType(strings.ToLower(strings.TrimSpace(raw)))
	if !value.Valid() {
		return "", false
	}
	return value, true
}
