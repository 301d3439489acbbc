package dao

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/karlseguin/ccache/v2"
	"go.uber.org/zap"

	"github.com/clinvault/recordstore/config"
	"github.com/clinvault/recordstore/metadata/models"
	"github.com/clinvault/recordstore/schema"
)

// SchemaVersion marks compatibility with previously created databases. On
// startup the schema is checked and a mismatch refuses the connection.
var SchemaVersion = fmt.Sprintf("%04d", schema.Version)

// DAO defines the contract the service layer has with the record database.
type DAO interface {
	// contribution ledger
	OpenContribution(ehrID uuid.NullUUID) (uuid.UUID, error)
	CommitContribution(id uuid.UUID, ts time.Time, committerID uuid.NullUUID, systemID uuid.NullUUID, dataType models.ContributionDataType, state models.ContributionState, changeType models.ContributionChangeType, description models.NullString) error
	GetContribution(id uuid.UUID) (models.Contribution, error)
	GetContributionEhrID(id uuid.UUID) (uuid.NullUUID, error)

	// ehr and versioned status
	CreateEhr(ehr *models.Ehr, status *models.EhrStatus, subject models.PartyRef, committerID uuid.NullUUID, systemID uuid.NullUUID, description models.NullString) (models.Ehr, error)
	GetEhr(id uuid.UUID) (models.Ehr, error)
	GetEhrBySubject(subject models.PartyRef) (models.Ehr, error)
	GetEhrStatus(ehrID uuid.UUID) (models.EhrStatus, error)
	UpdateEhrStatus(status *models.EhrStatus, force bool, committerID uuid.NullUUID, systemID uuid.NullUUID, description models.NullString) (bool, error)
	GetEhrStatusRevision(statusID uuid.UUID, version int) (models.EhrStatus, error)
	GetEhrStatusVersionAtTime(statusID uuid.UUID, at time.Time) (int, error)

	// folder hierarchy
	CreateFolderTree(ehrID uuid.UUID, tree *models.FolderNode) (uuid.UUID, error)
	GetFolderTree(folderID uuid.UUID) (*models.FolderNode, error)
	GetFolderTreeAtTime(folderID uuid.UUID, at time.Time) (*models.FolderNode, error)
	UpdateFolderTree(folderID uuid.UUID, tree *models.FolderNode, at time.Time) (bool, error)
	DeleteFolderTree(folderID uuid.UUID) (int, error)
	GetFolderVersionAtTime(folderID uuid.UUID, at time.Time) (int, error)

	// subject identity
	GetOrCreateParty(ref models.PartyRef) (uuid.UUID, error)
	GetParty(id uuid.UUID) (models.PartyIdentified, error)

	GetDBState() (models.DBState, error)
	GetLogger() *zap.Logger

	// disabled legacy entry points, retained on the shared contract
	CommitEhrStatus() (uuid.UUID, error)
	UpdateEhrStatusNow(force bool) (bool, error)
	DeleteEhr(id uuid.UUID) (int, error)
}

// DataAccessLayer is a concrete DAO implementation with a true DB connection.
type DataAccessLayer struct {
	// RecordDB is the connection.
	RecordDB *sqlx.DB
	// Logger has a default, but can be updated by passing options to constructor.
	Logger *zap.Logger
	// DeadlockRetryCounter is how often to retry a transaction aborted by
	// the storage engine's deadlock detection.
	DeadlockRetryCounter int64
	// DeadlockRetryDelay is the pause between retries in milliseconds.
	DeadlockRetryDelay int64

	partyCache *ccache.Cache
}

// Opt sets an option on DataAccessLayer.
type Opt func(*DataAccessLayer)

// WithLogger sets a custom logger on DataAccessLayer.
func WithLogger(logger *zap.Logger) Opt {
	return func(d *DataAccessLayer) {
		d.Logger = logger
	}
}

// WithDeadlockRetry overrides the retry count and delay for transactions
// aborted by deadlock detection.
func WithDeadlockRetry(counter, delayMS int64) Opt {
	return func(d *DataAccessLayer) {
		d.DeadlockRetryCounter = counter
		d.DeadlockRetryDelay = delayMS
	}
}

// NewDataAccessLayer constructs a new DataAccessLayer with defaults and
// options. A string database instance identifier is also returned.
func NewDataAccessLayer(conf config.DatabaseConfiguration, opts ...Opt) (*DataAccessLayer, string, error) {

	db, err := conf.GetDatabaseHandle()
	if err != nil {
		return nil, "", err
	}
	d := DataAccessLayer{RecordDB: db}

	defaults(&d)
	for _, opt := range opts {
		opt(&d)
	}

	if err := pingDB(&d); err != nil {
		return nil, "", fmt.Errorf("could not ping database: %w", err)
	}

	state, err := d.GetDBState()
	if err != nil {
		return nil, "", fmt.Errorf("getting db state failed: %w", err)
	}
	if state.SchemaVersion != SchemaVersion {
		return nil, "", fmt.Errorf("schema version mismatch: database %s, code %s", state.SchemaVersion, SchemaVersion)
	}

	return &d, state.Identifier, nil
}

func defaults(d *DataAccessLayer) {
	logger, err := zap.NewProduction()
	if err != nil {
		logger = zap.NewNop()
	}
	d.Logger = logger
	d.DeadlockRetryCounter = 30
	d.DeadlockRetryDelay = 55
	d.partyCache = ccache.New(ccache.Configure().MaxSize(1000))
}

// GetLogger is a logger, probably for this session
func (dao *DataAccessLayer) GetLogger() *zap.Logger {
	return dao.Logger
}

func daoCompileCheck() DAO {
	// function exists to make compiler complain when interface changes.
	return &DataAccessLayer{}
}

func pingDB(d *DataAccessLayer) error {
	logger := d.GetLogger()

	attempts := 0
	max := 20
	sleep := 3

	var err error
	for attempts < max {
		attempts++
		err = d.RecordDB.Ping()
		if err == nil {
			return nil
		}
		logger.Info("db not ready, sleeping for retry", zap.Int("attempt", attempts))
		time.Sleep(time.Duration(sleep) * time.Second)
	}
	return err
}
