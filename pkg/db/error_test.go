package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: projects.slug")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestIsForeignKeyErr(t *testing.T) {
	assert.True(t, IsForeignKeyErr(gorm.ErrForeignKeyViolated))
	assert.False(t, IsForeignKeyErr(errors.New("timeout")))
}

func TestIsSQLite(t *testing.T) {
	conn, err := NewTest()
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	assert.True(t, IsSQLite(conn))
	assert.False(t, IsSQLite(nil))
	assert.False(t, IsSQLite(&gorm.DB{Config: &gorm.Config{}}))
}
