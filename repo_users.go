package auth

import (
	"context"
	"database/sql"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/goliatone/go-repository-bun"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"
)

const (
	TextCodeRecordNotFound = "RECORD_NOT_FOUND"
	TextCodeDuplicate      = "DUPLICATE_RECORD"
)

// ErrRecordNotFound is returned by lookups that match no live record
var ErrRecordNotFound = goerrors.New("record not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeRecordNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrDuplicateRecord is returned when a unique column collides with a live record
var ErrDuplicateRecord = goerrors.New("record already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicate).
	WithCode(goerrors.CodeBadRequest)

// IsRecordNotFound reports whether err is a not found lookup
func IsRecordNotFound(err error) bool {
	if err == nil {
		return false
	}
	if goerrors.Is(err, sql.ErrNoRows) {
		return true
	}
	return HasTextCode(err, TextCodeRecordNotFound)
}

// Users is the credential store. Every read goes through the soft_delete
// column on the model, so deleted rows are invisible to all lookups.
type Users interface {
	UserStore

	GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByNationalID(ctx context.Context, nationalID string) (bool, error)

	Create(ctx context.Context, user *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	UpdateProfile(ctx context.Context, user *User) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error)
	SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) (*User, error)
	SoftDelete(ctx context.Context, id uuid.UUID, deletedBy string) error
	SoftDeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID, deletedBy string) error
	List(ctx context.Context, filter UserListFilter) ([]*User, int, error)
}

type users struct {
	repository.Repository[*User]
	db  *bun.DB
	now func() time.Time
}

var _ Users = (*users)(nil)

// UsersOption customizes the users repository
type UsersOption func(*users)

// WithUsersClock injects the clock used for timestamps
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

// NewUsersRepository returns a bun backed Users repository
func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string { return "email" },
	})

	repoUsers := &users{
		Repository: repo,
		db:         db,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repoUsers)
		}
	}
	return repoUsers
}

func (a *users) GetByID(ctx context.Context, id string) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id string) (*User, error) {
	uid, ok := ParseUserID(id)
	if !ok {
		return nil, notFound("id", id)
	}

	record, err := a.Repository.GetByIDTx(ctx, tx, uid.String())
	if err != nil {
		return nil, storeError(err, "id", id)
	}
	return record, nil
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, notFound("email", email)
	}

	record, err := a.Repository.Get(ctx, repository.SelectBy("email", "=", normalized))
	if err != nil {
		return nil, storeError(err, "email", normalized)
	}
	return record, nil
}

func (a *users) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return a.exists(ctx, "email", NormalizeEmail(email))
}

func (a *users) ExistsByNationalID(ctx context.Context, nationalID string) (bool, error) {
	return a.exists(ctx, "national_id", strings.TrimSpace(nationalID))
}

func (a *users) exists(ctx context.Context, column, value string) (bool, error) {
	ok, err := a.db.NewSelect().
		Model((*User)(nil)).
		Apply(repository.SelectBy(column, "=", value)).
		Exists(ctx)
	if err != nil {
		return false, DependencyError(err, "failed to query users")
	}
	return ok, nil
}

func (a *users) Create(ctx context.Context, user *User) (*User, error) {
	return a.CreateTx(ctx, a.db, user)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	if user == nil {
		return nil, goerrors.New("user must not be nil", goerrors.CategoryBadInput)
	}

	a.prepareUserDefaults(user)

	record, err := a.Repository.CreateTx(ctx, tx, user)
	if err != nil {
		return nil, writeError(err, "failed to create user")
	}
	return record, nil
}

// UpdateProfile writes the editable profile columns. Empty values keep the
// stored ones.
func (a *users) UpdateProfile(ctx context.Context, user *User) (*User, error) {
	if user == nil || user.ID == uuid.Nil {
		return nil, notFound("id", "")
	}

	now := a.now()
	user.UpdatedAt = &now

	updated, err := a.Repository.Update(ctx, user,
		repository.UpdateColumns("name", "pronoun", "phone", "birth_date", "updated_at"),
	)
	if err != nil {
		return nil, updateError(err, user.ID, "failed to update user")
	}
	return updated, nil
}

func (a *users) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	now := a.now()
	_, err := a.Repository.Update(ctx,
		&User{ID: id, PasswordHash: passwordHash, UpdatedAt: &now},
		repository.UpdateColumns("password_hash", "updated_at"),
	)
	if err != nil {
		return updateError(err, id, "failed to update password")
	}
	return nil
}

// TrackSuccessfulLogin stamps last_login_at. It only touches that column so
// a concurrent profile edit is not overwritten.
func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	if user == nil {
		return nil
	}

	now := a.now()
	_, err := a.Repository.Update(ctx,
		&User{ID: user.ID, LastLoginAt: &now},
		repository.UpdateColumns("last_login_at"),
	)
	if err != nil && !repository.IsRecordNotFound(err) {
		return DependencyError(err, "failed to track login")
	}

	user.LastLoginAt = &now
	return nil
}

func (a *users) SetActive(ctx context.Context, id uuid.UUID, active bool) (*User, error) {
	return a.SetActiveTx(ctx, a.db, id, active)
}

func (a *users) SetActiveTx(ctx context.Context, tx bun.IDB, id uuid.UUID, active bool) (*User, error) {
	now := a.now()
	_, err := a.Repository.UpdateTx(ctx, tx,
		&User{ID: id, UpdatedAt: &now},
		repository.UpdateColumns("active", "updated_at"),
		setValue("active", active),
	)
	if err != nil {
		return nil, updateError(err, id, "failed to update user status")
	}
	return a.GetByIDTx(ctx, tx, id.String())
}

func (a *users) SoftDelete(ctx context.Context, id uuid.UUID, deletedBy string) error {
	return a.SoftDeleteTx(ctx, a.db, id, deletedBy)
}

// SoftDeleteTx disables the account and marks it deleted in one statement.
// The row is kept, so its id is never handed out again.
func (a *users) SoftDeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID, deletedBy string) error {
	now := a.now()
	_, err := a.Repository.UpdateTx(ctx, tx,
		&User{ID: id, DeletedAt: &now, DeletedBy: deletedBy, UpdatedAt: &now},
		repository.UpdateColumns("active", "deleted_at", "deleted_by", "updated_at"),
		setValue("active", false),
	)
	if err != nil {
		return updateError(err, id, "failed to delete user")
	}
	return nil
}

func (a *users) List(ctx context.Context, filter UserListFilter) ([]*User, int, error) {
	filter = filter.Normalize()

	criteria := []repository.SelectCriteria{
		repository.SelectOrderDesc("created_at"),
		repository.Paginate(filter.Limit, filter.Offset()),
	}
	if filter.Search != "" {
		criteria = append(criteria, searchUsers(filter.Search))
	}

	records, total, err := a.Repository.List(ctx, criteria...)
	if err != nil {
		return nil, 0, DependencyError(err, "failed to list users")
	}
	return records, total, nil
}

// searchUsers matches a case insensitive fragment of the name or email
func searchUsers(term string) repository.SelectCriteria {
	pattern := "%" + strings.ToLower(term) + "%"
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereGroup(" AND ", func(sq *bun.SelectQuery) *bun.SelectQuery {
			return sq.
				Where("LOWER(?TableAlias.name) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.email) LIKE ?", pattern)
		})
	}
}

// setValue writes column even when value is the zero value, which the
// generic update would otherwise omit
func setValue(column string, value any) repository.UpdateCriteria {
	return func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Value(column, "?", value)
	}
}

func (a *users) prepareUserDefaults(record *User) {
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	record.Email = NormalizeEmail(record.Email)
	record.NationalID = strings.TrimSpace(record.NationalID)

	if record.Role == nil {
		record.Role = RolePtr(RoleStandard)
	}

	now := a.now()
	if record.CreatedAt == nil {
		record.CreatedAt = &now
	}
	record.UpdatedAt = &now
}

func notFound(column, value string) error {
	return ErrRecordNotFound.Clone().WithMetadata(map[string]any{
		column: value,
	})
}

func storeError(err error, column, value string) error {
	if goerrors.Is(err, sql.ErrNoRows) {
		return notFound(column, value)
	}
	return DependencyError(err, "failed to query users")
}

func writeError(err error, message string) error {
	if IsUniqueViolation(err) {
		return withCause(ErrDuplicateRecord, err, nil)
	}
	return DependencyError(err, message)
}

const pgUniqueViolation = "23505"

// IsUniqueViolation reports a unique index collision on postgres or sqlite
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}

	// sqlite reports constraint failures only through the message
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key")
}

func updateError(err error, id uuid.UUID, message string) error {
	if repository.IsRecordNotFound(err) {
		return notFound("id", id.String())
	}
	return writeError(err, message)
}
