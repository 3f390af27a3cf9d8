package student

import (
	"time"

	"github.com/uptrace/bun"
)

type Student struct {
	bun.BaseModel `bun:"table:students,alias:s"`

	ID          int64      `bun:"id,pk,autoincrement" json:"id"`
	FirstName   string     `bun:"first_name,type:varchar(100),notnull" json:"first_name"`
	LastName    string     `bun:"last_name,type:varchar(100),notnull" json:"last_name"`
	Email       string     `bun:"email,type:varchar(255),notnull,unique" json:"email"`
	Phone       *string    `bun:"phone,type:varchar(15)" json:"phone"`
	DateOfBirth *time.Time `bun:"date_of_birth,type:date" json:"date_of_birth"`
	Address     *string    `bun:"address,type:text" json:"address"`
	CreatedAt   time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
	UpdatedAt   time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp" json:"updated_at"`
}

// writableColumns are the columns a client may set. id and the timestamps are
// owned by the database.
var writableColumns = []string{"first_name", "last_name", "email", "phone", "date_of_birth", "address"}
