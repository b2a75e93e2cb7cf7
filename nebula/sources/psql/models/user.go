package models

type User struct {
	ID       int     `json:"id" gorm:"primaryKey;autoIncrement"`
	Username string  `json:"username" gorm:"type:varchar(255);not null;uniqueIndex"`
	Email    string  `json:"email" gorm:"type:varchar(255);not null"`
	FullName *string `json:"fullName,omitempty" gorm:"type:varchar(255)"`
}
