// Package vaultdb is a local, multi-vault markdown note store: typed
// note types with metadata schemas, a wikilink graph, and a hybrid
// index that treats the filesystem as the source of truth and an
// embedded SQLite database as the query layer.
//
// External collaborators (a CLI, a JSON-RPC tool transport, a
// programmatic API) consume the core through this package: open a
// [Registry], build a [Cache], and obtain a per-vault [Context] whose
// Notes/Types/Search managers carry the full operation set. Mutations
// are optimistic-concurrency protected by content hashes; a stale hash
// fails with [KindContentHashMismatch] carrying both hashes so callers
// can re-read and retry.
package vaultdb

import (
	"github.com/vaultdb/vaultdb/internal/model"
	"github.com/vaultdb/vaultdb/internal/notemgr"
	"github.com/vaultdb/vaultdb/internal/registry"
	"github.com/vaultdb/vaultdb/internal/search"
	"github.com/vaultdb/vaultdb/internal/store"
	"github.com/vaultdb/vaultdb/internal/vaultctx"
	"github.com/vaultdb/vaultdb/internal/vaulterr"
	"github.com/vaultdb/vaultdb/internal/vlog"
	"github.com/vaultdb/vaultdb/internal/workspace"
)

// Core data types.
type (
	Note           = model.Note
	NoteInfo       = model.NoteInfo
	NoteType       = model.NoteType
	MetadataSchema = model.MetadataSchema
	FieldDef       = model.FieldDef
	FieldType      = model.FieldType
	Value          = model.Value
	LinkEdge       = model.LinkEdge
	ExternalLink   = model.ExternalLink
	VaultRecord    = model.VaultRecord
	VaultConfig    = model.VaultConfig
)

// Operation inputs and results.
type (
	CreateInput      = notemgr.CreateInput
	BatchResult      = notemgr.BatchResult
	RenameResult     = notemgr.RenameResult
	MoveResult       = notemgr.MoveResult
	BulkDeleteFilter = notemgr.BulkDeleteFilter
	AdvancedQuery    = search.AdvancedQuery
	MetadataFilter   = search.MetadataFilter
	LinkQuery        = search.LinkQuery
	SearchResult     = search.Result
	SQLQueryInput    = store.SQLQueryInput
	SQLQueryResult   = store.SQLQueryResult
)

// Value constructors for dynamic metadata.
var (
	String  = model.String
	Number  = model.Number
	Boolean = model.Boolean
	Date    = model.Date
	Array   = model.Array
)

// Wiring types.
type (
	Registry = registry.Registry
	Cache    = vaultctx.Cache
	Context  = vaultctx.Context
	Logger   = vlog.Logger
)

// Error taxonomy. Callers pattern-match with [ErrorKindOf] rather than
// parsing messages.
type (
	Error     = vaulterr.Error
	ErrorKind = vaulterr.Kind
)

const (
	KindNotFound            = vaulterr.KindNotFound
	KindAlreadyExists       = vaulterr.KindAlreadyExists
	KindValidationFailed    = vaulterr.KindValidationFailed
	KindSchemaInvalid       = vaulterr.KindSchemaInvalid
	KindProtectedField      = vaulterr.KindProtectedField
	KindContentHashMismatch = vaulterr.KindContentHashMismatch
	KindMissingContentHash  = vaulterr.KindMissingContentHash
	KindPolicyDenied        = vaulterr.KindPolicyDenied
	KindPathUnsafe          = vaulterr.KindPathUnsafe
	KindIoError             = vaulterr.KindIoError
	KindIndexError          = vaulterr.KindIndexError
	KindSqlDenied           = vaulterr.KindSqlDenied
	KindTimeout             = vaulterr.KindTimeout
	KindCanceled            = vaulterr.KindCanceled
)

// ErrorKindOf extracts the taxonomy kind from err, or the zero kind if
// err is not a vaultdb error.
func ErrorKindOf(err error) ErrorKind { return vaulterr.KindOf(err) }

// DefaultRegistryPath returns the conventional registry file location
// under the user's config directory.
func DefaultRegistryPath() (string, error) { return registry.DefaultPath() }

// OpenRegistry opens (lazily creating) the global vault registry at
// path.
func OpenRegistry(path string) (*Registry, error) { return registry.Open(path) }

// NewCache builds the process-wide cache of active vault contexts over
// reg. log may be nil to discard log output.
func NewCache(reg *Registry, log *Logger) *Cache { return vaultctx.NewCache(reg, log) }

// LogLevel orders logger verbosity, least to most verbose.
type LogLevel = vlog.Level

const (
	LogError = vlog.LevelError
	LogWarn  = vlog.LevelWarn
	LogInfo  = vlog.LevelInfo
	LogDebug = vlog.LevelDebug
)

// NewLogger builds a leveled logger writing to w.
var NewLogger = vlog.New

// DefaultLogger writes warnings and errors to stderr.
var DefaultLogger = vlog.Default

// InitializeVault creates a brand-new vault directory at root: its
// config and a default set of note types. Register
// it afterwards so a [Cache] can open it by id.
func InitializeVault(root string) error {
	_, err := workspace.InitializeVault(root)

	return err
}

// CreateVault initializes the directory at rec.Path as a vault and
// registers it in one step.
func CreateVault(reg *Registry, rec VaultRecord) error {
	if err := InitializeVault(rec.Path); err != nil {
		return err
	}

	return reg.Register(rec)
}
