package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type AuthorModel struct {
	ID         string `gorm:"primaryKey"`
	FirstName  string `gorm:"not null"`
	FamilyName string `gorm:"not null;index"`
	BornOn     *datatypes.Date
	DiedOn     *datatypes.Date
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time
}

func (AuthorModel) TableName() string { return "authors" }

type BookModel struct {
	ID        string      `gorm:"primaryKey"`
	Title     string      `gorm:"not null;index"`
	AuthorID  string      `gorm:"not null;index"`
	Author    AuthorModel `gorm:"constraint:OnDelete:RESTRICT"`
	Summary   string      `gorm:"type:text;not null"`
	ISBN      string      `gorm:"not null"`
	CoverKey  string
	Genres    []GenreModel `gorm:"many2many:book_genres;joinForeignKey:BookID;joinReferences:GenreID"`
	CreatedAt time.Time    `gorm:"not null"`
	UpdatedAt time.Time
}

func (BookModel) TableName() string { return "books" }

// BookGenreModel is the explicit join row between books and genres.
type BookGenreModel struct {
	BookID  string `gorm:"primaryKey"`
	GenreID string `gorm:"primaryKey;index"`
}

func (BookGenreModel) TableName() string { return "book_genres" }

type BookInstanceModel struct {
	ID        string    `gorm:"primaryKey"`
	BookID    string    `gorm:"not null;index"`
	Book      BookModel `gorm:"constraint:OnDelete:RESTRICT"`
	Imprint   string    `gorm:"not null"`
	Status    string    `gorm:"not null;index"`
	DueBack   *datatypes.Date
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

func (BookInstanceModel) TableName() string { return "book_instances" }

type GenreModel struct {
	ID        string    `gorm:"primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (GenreModel) TableName() string { return "genres" }
