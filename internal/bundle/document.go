package bundle

import (
	"bytes"
	"sort"

	"github.com/google/uuid"

	"github.com/distribox/distribox/internal/history"
)

// deltaDocument is the JSON shape of Delta.txt: a sequence of File
// Histories being transferred (§6 "Bundle format").
type deltaDocument struct {
	Histories []deltaHistory `json:"histories"`
}

type deltaHistory struct {
	FileID uuid.UUID       `json:"file_id"`
	Events []history.Event `json:"events"`
}

// toDeltaDocument builds the serialized delta shape, sorted by FileID so
// that two builds from the same Version List state produce byte-identical
// Delta.txt content — Histories() iterates a map and makes no ordering
// guarantee of its own, and the Bundle Ledger keys its idempotence check
// on the resulting archive's digest.
func toDeltaDocument(histories []*history.History) deltaDocument {
	doc := deltaDocument{Histories: make([]deltaHistory, 0, len(histories))}

	for _, h := range histories {
		doc.Histories = append(doc.Histories, deltaHistory{FileID: h.ID(), Events: h.Events()})
	}

	sort.Slice(doc.Histories, func(i, j int) bool {
		a, b := doc.Histories[i].FileID, doc.Histories[j].FileID
		return bytes.Compare(a[:], b[:]) < 0
	})

	return doc
}
