package datasets

import "time"

// Dataset is the registry record for an ingested file. The cleaned table
// itself lives in the object store under ArtifactKey.
type Dataset struct {
	ID          string    `json:"id"`
	FileName    string    `json:"fileName"`
	ArtifactKey string    `json:"artifactKey"`
	Rows        int       `json:"rows"`
	Columns     []string  `json:"columns"`
	CreatedAt   time.Time `json:"createdAt"`
}
