package handler

import (
	"github.com/msomdec/user-board/internal/domain"
)

// UserDTO is the wire form of a user on the collection endpoint.
type UserDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Age  int    `json:"age"`
}

func toUserDTO(u *domain.User) UserDTO {
	return UserDTO{ID: u.ID, Name: u.Name, Age: u.Age}
}

func toUserDTOs(users []domain.User) []UserDTO {
	dtos := make([]UserDTO, len(users))
	for i := range users {
		dtos[i] = toUserDTO(&users[i])
	}
	return dtos
}
