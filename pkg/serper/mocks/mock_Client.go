// Package mocks provides test doubles for the serper client.
package mocks

import (
	"context"

	serper "github.com/hunterpro/hunter-cli/pkg/serper"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Search provides a mock function with given fields: ctx, apiKey, req
func (_m *MockClient) Search(ctx context.Context, apiKey string, req serper.Request) (*serper.Response, error) {
	ret := _m.Called(ctx, apiKey, req)

	if len(ret) == 0 {
		panic("no return value specified for Search")
	}

	var r0 *serper.Response
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, string, serper.Request) (*serper.Response, error)); ok {
		return rf(ctx, apiKey, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, string, serper.Request) *serper.Response); ok {
		r0 = rf(ctx, apiKey, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*serper.Response)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, string, serper.Request) error); ok {
		r1 = rf(ctx, apiKey, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	mock := &MockClient{}
	mock.Test(t)

	t.Cleanup(func() { mock.AssertExpectations(t) })

	return mock
}
