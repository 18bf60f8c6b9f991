// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/chatpilot/api/schemas"
	"github.com/xkilldash9x/chatpilot/internal/config"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Detector() config.DetectorConfig {
	args := m.Called()
	return args.Get(0).(config.DetectorConfig)
}

func (m *MockConfig) AutoSend() config.AutoSendConfig {
	args := m.Called()
	return args.Get(0).(config.AutoSendConfig)
}

func (m *MockConfig) Store() config.StoreConfig {
	args := m.Called()
	return args.Get(0).(config.StoreConfig)
}

func (m *MockConfig) Notify() config.NotifyConfig {
	args := m.Called()
	return args.Get(0).(config.NotifyConfig)
}

func (m *MockConfig) Buttons() []schemas.Prompt {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]schemas.Prompt)
	}
	return nil
}

// --- Setters ---

// Browser Setters
func (m *MockConfig) SetBrowserHeadless(b bool) {
	m.Called(b)
}

func (m *MockConfig) SetBrowserRemoteURL(u string) {
	m.Called(u)
}

// Store Setters
func (m *MockConfig) SetStoreDriver(d string) {
	m.Called(d)
}

func (m *MockConfig) SetStorePath(p string) {
	m.Called(p)
}

// Detector Setters
func (m *MockConfig) SetHeuristics(h schemas.HeuristicSettings) {
	m.Called(h)
}

// -- Selector Repository Mock --

// MockSelectorRepository mocks the schemas.SelectorRepository interface.
type MockSelectorRepository struct {
	mock.Mock
}

func (m *MockSelectorRepository) GetCustomSelectors(ctx context.Context, site schemas.Site) (*schemas.SelectorSet, error) {
	args := m.Called(ctx, site)
	var set *schemas.SelectorSet
	if v := args.Get(0); v != nil {
		set = v.(*schemas.SelectorSet)
	}
	return set, args.Error(1)
}

func (m *MockSelectorRepository) SaveCustomSelectors(ctx context.Context, site schemas.Site, set schemas.SelectorSet) error {
	args := m.Called(ctx, site, set)
	return args.Error(0)
}

func (m *MockSelectorRepository) DeleteCustomSelectors(ctx context.Context, site schemas.Site) error {
	args := m.Called(ctx, site)
	return args.Error(0)
}

func (m *MockSelectorRepository) ListSites(ctx context.Context) ([]schemas.Site, error) {
	args := m.Called(ctx)
	var sites []schemas.Site
	if v := args.Get(0); v != nil {
		sites = v.([]schemas.Site)
	}
	return sites, args.Error(1)
}

// -- Notifier Mock --

// MockNotifier mocks the schemas.Notifier interface.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Toast(ctx context.Context, message string, kind schemas.ToastKind, opts *schemas.ToastOptions) {
	m.Called(ctx, message, kind, opts)
}
