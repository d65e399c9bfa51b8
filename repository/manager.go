package repository

import (
	"errors"
	"log"

	auth "github.com/mavi3006/hotel-auth"
	"github.com/mavi3006/hotel-auth/rooms"
	"github.com/uptrace/bun"
)

// Manager bundles the credential store with the hotel inventory stores over
// one database handle.
type Manager struct {
	auth.RepositoryManager
	rooms rooms.Repository
}

// NewManager builds every repository over db
func NewManager(db *bun.DB, opts ...auth.UsersOption) *Manager {
	return &Manager{
		RepositoryManager: auth.NewRepositoryManager(db, opts...),
		rooms:             NewRoomRepository(db),
	}
}

func (m *Manager) Validate() error {
	if err := m.RepositoryManager.Validate(); err != nil {
		return err
	}
	if m.rooms == nil {
		return errors.New("repository rooms should be initialized")
	}
	return nil
}

func (m *Manager) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m *Manager) Rooms() rooms.Repository {
	return m.rooms
}
