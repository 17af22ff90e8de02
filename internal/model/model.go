// Package model defines the entities shared across the ingestion pipeline:
// sources, scrape jobs, document records and their metadata/chunk/embedding
// satellites, external data sources, and sync logs.
package model

import "time"

// Dialect selects the site-specific discovery strategy a Source uses
// (internal/dialect).
type Dialect string

const (
	DialectMoE     Dialect = "moe"
	DialectUGC     Dialect = "ugc"
	DialectAICTE   Dialect = "aicte"
	DialectGeneric Dialect = "generic"
)

// SourceStats tracks the running counters the orchestrator updates after
// each scrape job against this source.
type SourceStats struct {
	TotalDocuments int64
	LastNew        int64
	LastUnchanged  int64
	LastFailed     int64
}

// Source is a registered scrape target. The registry (internal/sources)
// owns create/update/delete/list/get; the orchestrator mutates only Stats
// and LastScrapedAt.
type Source struct {
	ID                string
	Name              string
	BaseURL           string
	Dialect           Dialect
	Keywords          []string
	MaxDocs           int
	MaxPages          int
	PaginationEnabled bool
	WindowSize        int
	Schedule          string // stored as given; no component in this module starts scrapes from it
	Enabled           bool
	LastScrapedAt     *time.Time
	Stats             SourceStats
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// JobStatus is the lifecycle state of a ScrapeJob. Status is monotonic
// except the running -> stopping -> stopped path.
type JobStatus string

const (
	JobRunning   JobStatus = "running"
	JobStopping  JobStatus = "stopping"
	JobStopped   JobStatus = "stopped"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// JobStats accumulates per-document outcomes as a scrape job progresses.
type JobStats struct {
	Discovered     int64
	New            int64
	Unchanged      int64
	FailedMetadata int64
	PagesScraped   int64
}

// ScrapeJob tracks one run of the orchestrator against a Source.
type ScrapeJob struct {
	JobID      string
	SourceID   string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     JobStatus
	StopSignal bool
	Stats      JobStats
	Error      string
}

// Visibility controls who may see a DocumentRecord before role/institution
// scoping is applied.
type Visibility string

const (
	VisibilityPublic           Visibility = "public"
	VisibilityInstitutionOnly  Visibility = "institution_only"
	VisibilityRestricted       Visibility = "restricted"
	VisibilityConfidential     Visibility = "confidential"
)

// ApprovalStatus is the document's place in the institutional review
// workflow.
type ApprovalStatus string

const (
	ApprovalDraft            ApprovalStatus = "draft"
	ApprovalPending          ApprovalStatus = "pending"
	ApprovalUnderReview      ApprovalStatus = "under_review"
	ApprovalChangesRequested ApprovalStatus = "changes_requested"
	ApprovalApproved         ApprovalStatus = "approved"
	ApprovalRestrictedApproved ApprovalStatus = "restricted_approved"
	ApprovalRejected         ApprovalStatus = "rejected"
	ApprovalArchived         ApprovalStatus = "archived"
	ApprovalFlagged          ApprovalStatus = "flagged"
	ApprovalExpired          ApprovalStatus = "expired"
)

// DocumentRecord is the durable record of one ingested file. It becomes
// visible only after download, upload, and persistence have all succeeded;
// a document whose text extraction failed is still recorded, with empty
// extracted text.
type DocumentRecord struct {
	ID                 string
	SourceURL          string
	CanonicalFilename  string
	FileType           string
	BlobURL            string
	ContentHash        string // sha256, unique within SourceID
	SourceID           string
	UploadedAt         time.Time
	UploaderID         string
	InstitutionID      string
	Visibility         Visibility
	ApprovalStatus     ApprovalStatus
	RequiresMoEApproval bool
	Version            int
	VersionDate        *time.Time
	IsScanned          bool
	ExtractedTextRef   string
	ParentDocumentID   string
	ETag               string // last-seen validator, used to skip an unchanged document without a full re-download
	LastModified       string
}

// EmbeddingStatus tracks the document's position in the lazy embedding
// pipeline.
type EmbeddingStatus string

const (
	EmbeddingNotEmbedded EmbeddingStatus = "not_embedded"
	EmbeddingInProgress  EmbeddingStatus = "embedding"
	EmbeddingEmbedded    EmbeddingStatus = "embedded"
	EmbeddingFailed      EmbeddingStatus = "failed"
)

// MetadataStatus tracks the document's position in the metadata extraction
// pipeline.
type MetadataStatus string

const (
	MetadataProcessing MetadataStatus = "processing"
	MetadataReady      MetadataStatus = "ready"
	MetadataFailed     MetadataStatus = "failed"
)

// DocumentMetadata is the 1:1 satellite of a DocumentRecord produced by the
// metadata extractor. Its absence is valid; re-created only on explicit
// re-extraction.
type DocumentMetadata struct {
	DocID           string
	Title           string
	Department      string
	DocumentType    string
	Summary         string
	Keywords        []string
	Language        string
	QualityScore    float64
	EmbeddingStatus EmbeddingStatus
	MetadataStatus  MetadataStatus
}

// Chunk is one content-addressed slice of a document's extracted text,
// produced by the section-aware chunker.
type Chunk struct {
	DocID           string
	ChunkIndex      int
	Text            string
	SectionHeader   string
	HasSection      bool
	CharOffsetStart int
	CharOffsetEnd   int
}

// EmbeddingMetadata is the denormalized filter payload carried alongside an
// Embedding vector so the vector store can filter without joining back to
// the relational store.
type EmbeddingMetadata struct {
	SectionHeader  string
	Filename       string
	InstitutionID  string
	Visibility     Visibility
	ApprovalStatus ApprovalStatus
	VersionYear    int
	DocumentType   string
}

// Embedding is one stored vector, always padded to DCanonical length.
type Embedding struct {
	DocID      string
	ChunkIndex int
	Vector     []float32
	Metadata   EmbeddingMetadata
}

// ExternalStorageMode selects how an ExternalDataSource's file column is
// interpreted.
type ExternalStorageMode string

const (
	ExternalStorageDatabase    ExternalStorageMode = "database"
	ExternalStorageObjectStore ExternalStorageMode = "object_store"
)

// ExternalObjectStoreConfig is the object-store endpoint an
// ExternalDataSource reads file paths from when Storage is object_store.
type ExternalObjectStoreConfig struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// ExternalDataSource is a foreign relational database periodically synced
// into the ingestion pipeline by internal/external.
type ExternalDataSource struct {
	ID                string
	Name              string
	Dialect           string // "mysql" or "postgres"
	Host              string
	Port              int
	DBName            string
	Username          string
	PasswordEncrypted []byte
	Storage           ExternalStorageMode
	ObjectStoreCfg    *ExternalObjectStoreConfig
	Table             string
	FileColumn        string
	FilenameColumn    string
	MetadataColumns   []string
	PathPrefix        string
	LastSyncAt        *time.Time
}

// SyncStatus is the terminal or in-flight state of a SyncLog entry.
type SyncStatus string

const (
	SyncRunning SyncStatus = "running"
	SyncSuccess SyncStatus = "success"
	SyncPartial SyncStatus = "partial"
	SyncFailed  SyncStatus = "failed"
)

// Role is a caller's privilege level for the access matrix.
type Role string

const (
	RoleStudent         Role = "student"
	RoleDocumentOfficer Role = "document_officer"
	RoleUniversityAdmin Role = "university_admin"
	RoleMinistryAdmin   Role = "ministry_admin"
	RoleDeveloper       Role = "developer"
)

// UserContext identifies the caller a retrieval request is scoped to.
type UserContext struct {
	UserID        string
	Role          Role
	InstitutionID string
}

// SyncLog is an append-only record of one external data source sync run.
type SyncLog struct {
	ID         string
	SourceID   string
	StartedAt  time.Time
	FinishedAt *time.Time
	Processed  int64
	Failed     int64
	Status     SyncStatus
	Error      string
}
