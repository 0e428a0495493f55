package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/Techsphere-Solutions-TenderTool/TenderToolBackend/internal/models"
)

// Normalizer turns one raw portal payload into normalized tenders with
// their documents and contacts attached. Records without a stable external
// id are skipped, never errored.
type Normalizer interface {
	Source() string
	Normalize(raw []byte) ([]models.Tender, error)
}

// contentHash is the change-detection hash over a per-source subset of
// normalized fields. json.Marshal sorts map keys, which makes the encoding
// canonical; timestamps go in as UTC RFC3339 or nil.
func contentHash(fields map[string]any) string {
	data, _ := json.Marshal(fields)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func isoOrNull(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
