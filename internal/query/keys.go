package query

import "fmt"

const (
	DocumentsPrefix = "documents/"
	DocumentPrefix  = "document/"
	SummaryPrefix   = "summary/"
)

func DocumentsKey(page, pageSize int) string {
	return fmt.Sprintf("%s%d/%d", DocumentsPrefix, page, pageSize)
}

func DocumentKey(id string) string {
	return DocumentPrefix + id
}

func SummaryKey(id string) string {
	return SummaryPrefix + id
}
