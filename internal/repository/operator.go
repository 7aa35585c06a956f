package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmousavi39/Learn-Ai-sub000/internal/domain"
	"github.com/jackc/pgx/v5"
)

const operatorColumns = `id, email, password, role, created_at, updated_at`

// OperatorRepository stores back-office accounts.
type OperatorRepository struct {
	db DBTX
}

// NewOperatorRepository creates a new OperatorRepository.
func NewOperatorRepository(db DBTX) *OperatorRepository {
	return &OperatorRepository{db: db}
}

// Create inserts a new operator.
func (r *OperatorRepository) Create(ctx context.Context, op *domain.Operator) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO operators (`+operatorColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		op.ID, op.Email, op.Password, op.Role, op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create operator: %w", err)
	}
	return nil
}

// FindByEmail returns nil, nil when no operator has that email.
func (r *OperatorRepository) FindByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	row := r.db.QueryRow(ctx, `SELECT `+operatorColumns+` FROM operators WHERE email = $1`, email)
	op, err := scanOperator(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find operator: %w", err)
	}
	return op, nil
}

// Exists checks whether an operator with the given email is registered.
func (r *OperatorRepository) Exists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM operators WHERE email = $1)`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check operator: %w", err)
	}
	return exists, nil
}

// UpdatePassword replaces the stored bcrypt hash.
func (r *OperatorRepository) UpdatePassword(ctx context.Context, email, hash string) error {
	tag, err := r.db.Exec(ctx, `UPDATE operators SET password = $1, updated_at = NOW() WHERE email = $2`, hash, email)
	if err != nil {
		return fmt.Errorf("failed to update operator password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("operator %s not found", email)
	}
	return nil
}

// List returns all operators, oldest first.
func (r *OperatorRepository) List(ctx context.Context) ([]*domain.Operator, error) {
	rows, err := r.db.Query(ctx, `SELECT `+operatorColumns+` FROM operators ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to list operators: %w", err)
	}
	defer rows.Close()

	var ops []*domain.Operator
	for rows.Next() {
		op, err := scanOperator(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operator: %w", err)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// Delete removes an operator by id and reports whether a row was removed.
func (r *OperatorRepository) Delete(ctx context.Context, id string) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM operators WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete operator: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanOperator(row pgx.Row) (*domain.Operator, error) {
	var op domain.Operator
	if err := row.Scan(&op.ID, &op.Email, &op.Password, &op.Role, &op.CreatedAt, &op.UpdatedAt); err != nil {
		return nil, err
	}
	return &op, nil
}
