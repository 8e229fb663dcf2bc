package service

import (
	"errors"

	"ContactBook/internal/model"
)

// errOwnershipMismatch 对外统一表现为 ContactNotFound，不暴露他人联系人是否存在
var errOwnershipMismatch = errors.New("contact is owned by another user")

func assertOwned(contact *model.Contact, callerID string) error {
	if contact == nil || contact.UserID != callerID {
		return errOwnershipMismatch
	}
	return nil
}
