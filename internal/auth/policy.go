// Package auth covers login and the role→permission decision table gating
// every privileged operation.
package auth

import (
	"github.com/dharsanguruparan/CrimeVault/internal/model"
)

// Action enumerates everything a caller can be gated on. The set is closed;
// unknown actions are denied for every role.
type Action string

const (
	ActionAddUser       Action = "ADD_USER"
	ActionManageUsers   Action = "MANAGE_USERS"
	ActionAddRecord     Action = "ADD_RECORD"
	ActionEditRecord    Action = "EDIT_RECORD"
	ActionDeleteRecord  Action = "DELETE_RECORD"
	ActionViewRecords   Action = "VIEW_RECORDS"
	ActionSearchRecords Action = "SEARCH_RECORDS"
)

// Permitted is the pure decision table: admin may do everything, special may
// manage records but not users, normal may only view and search. An empty
// role (unauthenticated caller) is denied everything.
func Permitted(role model.Role, action Action) bool {
	switch role {
	case model.RoleAdmin:
		switch action {
		case ActionAddUser, ActionManageUsers,
			ActionAddRecord, ActionEditRecord, ActionDeleteRecord,
			ActionViewRecords, ActionSearchRecords:
			return true
		}
	case model.RoleSpecial:
		switch action {
		case ActionAddRecord, ActionEditRecord, ActionDeleteRecord,
			ActionViewRecords, ActionSearchRecords:
			return true
		}
	case model.RoleNormal:
		switch action {
		case ActionViewRecords, ActionSearchRecords:
			return true
		}
	}
	return false
}
