package model

import "strings"

// TitleCase turns a PokeAPI slug into a display name: "mr-mime" becomes
// "Mr Mime".
func TitleCase(slug string) string {
	parts := strings.FieldsFunc(slug, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, p := range parts {
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}
