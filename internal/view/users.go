// Package view renders the user board.
package view

import (
	"fmt"

	"github.com/msomdec/user-board/internal/domain"
)

// UserListID is the element id patched when the collection changes.
const UserListID = "user-list"

// EmptyMessage is shown instead of list items when there are no users.
const EmptyMessage = "사용자가 없습니다."

// UserLabel is the display text of one user, e.g. "Kim (30세)".
func UserLabel(u domain.User) string {
	return fmt.Sprintf("%s (%d세)", u.Name, u.Age)
}

// PendingSignals is the form state shared with the browser as Datastar signals.
type PendingSignals struct {
	Name string `json:"name"`
	Age  string `json:"age"`
}
