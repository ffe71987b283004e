package identity

import "time"

// OrgMembership links a user to their organization. Rows are maintained by
// the membership webhook relay, outside this engine; the engine only reads.
type OrgMembership struct {
	UserID    string     `gorm:"column:user_id;type:varchar(64);primaryKey"`
	OrgID     string     `gorm:"column:org_id;type:varchar(64);not null;index"`
	OrgName   string     `gorm:"column:org_name;type:varchar(120)"`
	CreatedAt time.Time  `gorm:"column:created_at"`
	UpdatedAt time.Time  `gorm:"column:updated_at"`
	DeletedAt *time.Time `gorm:"column:deleted_at;index"`
}

func (OrgMembership) TableName() string {
	return "org_memberships"
}
