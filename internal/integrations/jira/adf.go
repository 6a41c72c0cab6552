package jira

import "strings"

// Document builds an ADF document from blocks.
func Document(blocks ...ADFContent) ADF {
	return ADF{Version: 1, Type: "doc", Content: blocks}
}

func Heading(level int, text string) ADFContent {
	return ADFContent{
		Type:    "heading",
		Attrs:   &ADFMarkAttributes{Level: level},
		Content: []ADFContent{{Type: "text", Text: text}},
	}
}

// Paragraph renders text, keeping line breaks as hard breaks.
func Paragraph(text string) ADFContent {
	lines := strings.Split(text, "\n")
	content := make([]ADFContent, 0, len(lines)*2)
	for i, line := range lines {
		if i > 0 {
			content = append(content, ADFContent{Type: "hardBreak"})
		}
		if line != "" {
			content = append(content, ADFContent{Type: "text", Text: line})
		}
	}
	return ADFContent{Type: "paragraph", Content: content}
}

// LabeledParagraph renders "label: value" with a bold label.
func LabeledParagraph(label, value string) ADFContent {
	return ADFContent{
		Type: "paragraph",
		Content: []ADFContent{
			{Type: "text", Text: label + ": ", Marks: []ADFMark{{Type: "strong"}}},
			{Type: "text", Text: value},
		},
	}
}

func OrderedList(items []string) ADFContent {
	list := ADFContent{Type: "orderedList"}
	for _, item := range items {
		list.Content = append(list.Content, ADFContent{
			Type:    "listItem",
			Content: []ADFContent{Paragraph(item)},
		})
	}
	return list
}
