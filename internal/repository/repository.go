package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Errors shared by every repository. Services translate them into business
// errors.
var (
	// ErrNotMatched is returned by a conditional update or delete that matched
	// no row: the record changed state since it was read.
	ErrNotMatched = errors.New("repository: no row matched the expected state")
	// ErrDuplicate wraps a unique-constraint violation.
	ErrDuplicate = errors.New("repository: duplicate key")
	// ErrOverlap wraps an exclusion-constraint violation (double booking).
	ErrOverlap = errors.New("repository: overlapping booking")
)

// TxRunner runs fn inside one database transaction. fn receives a Repository
// bound to the transaction; returning an error rolls back.
type TxRunner interface {
	Run(ctx context.Context, fn func(tx *Repository) error) error
}

// Repository is the aggregate of every data access interface.
type Repository struct {
	Tx           TxRunner
	User         UserRepository
	Offer        OfferRepository
	Slot         InterviewSlotRepository
	Application  ApplicationRepository
	Internship   InternshipRepository
	Invitation   InvitationRepository
	Report       ReportRepository
	Version      ReportVersionRepository
	Comment      CommentRepository
	Soutenance   SoutenanceRepository
	Room         RoomRepository
	Notification NotificationRepository
}

// NewRepository builds the aggregate on top of db (a pool or a transaction).
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		Tx:           &gormTx{db: db},
		User:         NewUserRepo(db),
		Offer:        NewOfferRepo(db),
		Slot:         NewInterviewSlotRepo(db),
		Application:  NewApplicationRepo(db),
		Internship:   NewInternshipRepo(db),
		Invitation:   NewInvitationRepo(db),
		Report:       NewReportRepo(db),
		Version:      NewReportVersionRepo(db),
		Comment:      NewCommentRepo(db),
		Soutenance:   NewSoutenanceRepo(db),
		Room:         NewRoomRepo(db),
		Notification: NewNotificationRepo(db),
	}
}

type gormTx struct {
	db *gorm.DB
}

func (t *gormTx) Run(ctx context.Context, fn func(tx *Repository) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepository(tx))
	})
}

// forUpdate locks the selected rows until the transaction ends.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// translate maps PostgreSQL constraint violations onto the shared errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return errors.Join(ErrDuplicate, err)
		case "23P01":
			return errors.Join(ErrOverlap, err)
		}
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}

// conditional turns a zero-row update into ErrNotMatched.
func conditional(res *gorm.DB) error {
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotMatched
	}
	return nil
}

// bump is merged into every status-conditional update.
func bump(fields map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["version"] = gorm.Expr("version + 1")
	return out
}

// StatusCount one row of a GROUP BY status query.
type StatusCount struct {
	Status string
	Count  int64
}

func toCountMap(rows []StatusCount) map[string]int64 {
	m := make(map[string]int64, len(rows))
	for _, r := range rows {
		m[r.Status] = r.Count
	}
	return m
}
