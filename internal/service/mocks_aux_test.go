package service

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/prn-tf/casebook/internal/domain"
)

// =============================================================================
// Mock User Repository
// =============================================================================

type MockUserRepository struct {
	mu     sync.Mutex
	users  map[int64]*domain.User
	nextID int64
}

func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{users: make(map[int64]*domain.User), nextID: 1}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return domain.ErrEmailAlreadyRegistered
		}
	}
	user.ID = m.nextID
	m.nextID++
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := m.GetByEmail(ctx, email)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

// =============================================================================
// Mock Reset Token Repository
// =============================================================================

type MockResetTokenRepository struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]*domain.PasswordResetToken
}

func NewMockResetTokenRepository() *MockResetTokenRepository {
	return &MockResetTokenRepository{tokens: make(map[uuid.UUID]*domain.PasswordResetToken)}
}

func (m *MockResetTokenRepository) Create(ctx context.Context, token *domain.PasswordResetToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

func (m *MockResetTokenRepository) Get(ctx context.Context, token uuid.UUID) (*domain.PasswordResetToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[token]; ok {
		return t, nil
	}
	return nil, domain.ErrResetTokenNotFound
}

func (m *MockResetTokenRepository) MarkUsed(ctx context.Context, token uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[token]
	if !ok {
		return domain.ErrResetTokenNotFound
	}
	t.Used = true
	return nil
}

// =============================================================================
// Mock Taxonomy Repository
// =============================================================================

type taxonomyKey struct {
	level domain.TaxonomyLevel
	id    int64
}

type MockTaxonomyRepository struct {
	mu     sync.Mutex
	nodes  map[taxonomyKey]*domain.TaxonomyNode
	order  []taxonomyKey
	nextID int64
}

func NewMockTaxonomyRepository() *MockTaxonomyRepository {
	return &MockTaxonomyRepository{nodes: make(map[taxonomyKey]*domain.TaxonomyNode), nextID: 1}
}

func (m *MockTaxonomyRepository) Create(ctx context.Context, node *domain.TaxonomyNode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	node.ID = m.nextID
	m.nextID++
	key := taxonomyKey{node.Level, node.ID}
	m.nodes[key] = node
	m.order = append(m.order, key)
	return nil
}

func (m *MockTaxonomyRepository) Get(ctx context.Context, level domain.TaxonomyLevel, ownerUserID, id int64) (*domain.TaxonomyNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[taxonomyKey{level, id}]
	if !ok || n.OwnerUserID != ownerUserID {
		return nil, domain.ErrTaxonomyNodeNotFound
	}
	return n, nil
}

func (m *MockTaxonomyRepository) Rename(ctx context.Context, level domain.TaxonomyLevel, ownerUserID, id int64, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[taxonomyKey{level, id}]
	if !ok || n.OwnerUserID != ownerUserID {
		return domain.ErrTaxonomyNodeNotFound
	}
	n.Name = name
	return nil
}

func (m *MockTaxonomyRepository) Delete(ctx context.Context, level domain.TaxonomyLevel, ownerUserID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := taxonomyKey{level, id}
	n, ok := m.nodes[key]
	if !ok || n.OwnerUserID != ownerUserID {
		return domain.ErrTaxonomyNodeNotFound
	}
	delete(m.nodes, key)
	return nil
}

func (m *MockTaxonomyRepository) ListByOwner(ctx context.Context, level domain.TaxonomyLevel, ownerUserID int64) ([]*domain.TaxonomyNode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.TaxonomyNode
	for _, key := range m.order {
		n, ok := m.nodes[key]
		if ok && n.Level == level && n.OwnerUserID == ownerUserID {
			out = append(out, n)
		}
	}
	return out, nil
}

// =============================================================================
// Mock Favorite Repository
// =============================================================================

type favoriteKey struct {
	userID  int64
	imageID int64
}

type MockFavoriteRepository struct {
	mu        sync.Mutex
	favorites map[favoriteKey]*domain.Favorite
	nextID    int64
}

func NewMockFavoriteRepository() *MockFavoriteRepository {
	return &MockFavoriteRepository{favorites: make(map[favoriteKey]*domain.Favorite), nextID: 1}
}

func (m *MockFavoriteRepository) Create(ctx context.Context, fav *domain.Favorite) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := favoriteKey{fav.UserID, fav.ImageID}
	if _, exists := m.favorites[key]; exists {
		return domain.ErrFavoriteAlreadyExists
	}
	fav.ID = m.nextID
	m.nextID++
	m.favorites[key] = fav
	return nil
}

func (m *MockFavoriteRepository) Delete(ctx context.Context, userID, imageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := favoriteKey{userID, imageID}
	if _, exists := m.favorites[key]; !exists {
		return domain.ErrFavoriteNotFound
	}
	delete(m.favorites, key)
	return nil
}

func (m *MockFavoriteRepository) ListByUser(ctx context.Context, userID int64) ([]*domain.Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Favorite
	for _, fav := range m.favorites {
		if fav.UserID == userID {
			out = append(out, fav)
		}
	}
	return out, nil
}
