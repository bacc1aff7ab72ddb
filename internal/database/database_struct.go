// Package database реализует хранилища пользователей, комнат и заявок поверх gorm.
package database

import (
	"errors"

	"gorm.io/gorm"

	"github.com/thereayou/roomgate/pkg/apperr"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

// translate сводит ошибки gorm к доменным.
func translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return notFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return apperr.ErrAlreadyExists
	}
	return err
}
