package vehicles

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BearBump/VinBox/internal/cache/memcache"
	"github.com/BearBump/VinBox/internal/models"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	vehiclesmocks "github.com/BearBump/VinBox/internal/services/vehicles/mocks"
)

const testVIN = "1HGBH41JXMN109186"

func str(s string) *string { return &s }

func civic() models.VehicleAttributes {
	return models.VehicleAttributes{Year: str("2010"), Make: str("Honda"), Model: str("Civic")}
}

type ServiceSuite struct {
	suite.Suite

	registry *vehiclesmocks.MockProvider
	proxy    *vehiclesmocks.MockProxy
	cache    *memcache.Cache
	svc      *Service
}

func (s *ServiceSuite) SetupTest() {
	s.registry = &vehiclesmocks.MockProvider{}
	s.registry.On("Name").Return("vpic").Maybe()
	s.proxy = &vehiclesmocks.MockProxy{}
	s.cache = memcache.New()
	s.svc = New(s.cache, s.registry, s.proxy)
}

func (s *ServiceSuite) TestDecode_InvalidVIN_NoNetwork_NotCached() {
	rec := s.svc.Decode(context.Background(), "1HGBH41JXMN1091O6", &Credentials{Token: "t"})
	s.Require().False(rec.Valid)
	s.Require().Equal(models.ErrInvalidVINFormat, rec.ErrorText())
	s.Require().Equal(models.FailureInvalid, rec.FailureKind)
	s.Require().Equal(0, s.cache.Len())

	s.registry.AssertNotCalled(s.T(), "Decode", mock.Anything, mock.Anything)
	s.proxy.AssertNotCalled(s.T(), "Decode", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestDecode_CacheHit_NoNetwork() {
	s.registry.On("Decode", mock.Anything, testVIN).Return(civic(), nil).Once()

	first := s.svc.Decode(context.Background(), testVIN, nil)
	second := s.svc.Decode(context.Background(), "1hgbh41jxmn109186", nil)

	s.Require().Equal(first, second)
	s.registry.AssertNumberOfCalls(s.T(), "Decode", 1)
}

func (s *ServiceSuite) TestDecode_CachedFailure_NoNetwork() {
	s.cache.Put(models.NewFailedRecord(testVIN, models.FailureNetwork, models.ErrRegistryFailed, time.Now()))

	rec := s.svc.Decode(context.Background(), testVIN, &Credentials{Token: "t"})
	s.Require().False(rec.Valid)
	s.Require().Equal(models.ErrRegistryFailed, rec.ErrorText())
	s.registry.AssertNotCalled(s.T(), "Decode", mock.Anything, mock.Anything)
	s.proxy.AssertNotCalled(s.T(), "Decode", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestDecode_ProxyFirst() {
	s.proxy.On("Decode", mock.Anything, testVIN, "tok").Return(civic(), nil).Once()

	rec := s.svc.Decode(context.Background(), testVIN, &Credentials{Token: "tok"})
	s.Require().True(rec.Valid)
	s.Require().Equal(models.SourceProxy, rec.Source)
	s.registry.AssertNotCalled(s.T(), "Decode", mock.Anything, mock.Anything)
	s.proxy.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestDecode_ProxyFails_FallsBackToRegistry() {
	s.proxy.On("Decode", mock.Anything, testVIN, "tok").Return(models.VehicleAttributes{}, errors.New("http 502")).Once()
	s.registry.On("Decode", mock.Anything, testVIN).Return(civic(), nil).Once()

	rec := s.svc.Decode(context.Background(), testVIN, &Credentials{Token: "tok"})
	s.Require().True(rec.Valid)
	s.Require().Equal(models.SourceUpstream, rec.Source)
	s.Require().Equal("Civic", *rec.Model)
	s.proxy.AssertExpectations(s.T())
	s.registry.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestDecode_ProxyHangs_RegistryGetsOwnTimeout() {
	svc := New(s.cache, s.registry, s.proxy, WithTimeout(100*time.Millisecond))

	s.proxy.On("Decode", mock.Anything, testVIN, "tok").
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(models.VehicleAttributes{}, context.DeadlineExceeded).
		Once()
	s.registry.On("Decode", mock.Anything, testVIN).
		Run(func(args mock.Arguments) {
			ctx := args.Get(0).(context.Context)
			s.Require().NoError(ctx.Err())
			deadline, ok := ctx.Deadline()
			s.Require().True(ok)
			s.Require().Greater(time.Until(deadline), 50*time.Millisecond)
		}).
		Return(civic(), nil).
		Once()

	rec := svc.Decode(context.Background(), testVIN, &Credentials{Token: "tok"})
	s.Require().True(rec.Valid)
	s.Require().Equal(models.SourceUpstream, rec.Source)
	s.Require().Equal("Civic", *rec.Model)
	s.proxy.AssertExpectations(s.T())
	s.registry.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestDecode_NoCredentials_ProxyNeverCalled() {
	s.registry.On("Decode", mock.Anything, testVIN).Return(civic(), nil).Twice()

	rec := s.svc.Decode(context.Background(), testVIN, nil)
	s.Require().True(rec.Valid)

	s.cache.Clear()
	rec = s.svc.Decode(context.Background(), testVIN, &Credentials{})
	s.Require().True(rec.Valid)

	s.proxy.AssertNotCalled(s.T(), "Decode", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestDecode_NotFound_CachedAsFailure() {
	s.registry.On("Decode", mock.Anything, testVIN).
		Return(models.VehicleAttributes{Make: str("Honda")}, nil).
		Once()

	rec := s.svc.Decode(context.Background(), testVIN, nil)
	s.Require().False(rec.Valid)
	s.Require().Equal(models.ErrVehicleNotFound, rec.ErrorText())
	s.Require().Equal(models.FailureNotFound, rec.FailureKind)
	s.Require().Equal("Honda", *rec.Make)

	cached, ok := s.cache.Get(testVIN)
	s.Require().True(ok)
	s.Require().Equal(rec, cached)
}

func (s *ServiceSuite) TestDecode_TransportFailure_BecomesRecord() {
	s.proxy.On("Decode", mock.Anything, testVIN, "tok").Return(models.VehicleAttributes{}, errors.New("dial tcp")).Once()
	s.registry.On("Decode", mock.Anything, testVIN).Return(models.VehicleAttributes{}, errors.New("timeout")).Once()

	rec := s.svc.Decode(context.Background(), testVIN, &Credentials{Token: "tok"})
	s.Require().False(rec.Valid)
	s.Require().Equal(models.FailureNetwork, rec.FailureKind)
	s.Require().Equal(models.ErrRegistryFailed, rec.ErrorText())
	s.Require().Nil(rec.Year)

	_, ok := s.cache.Get(testVIN)
	s.Require().True(ok)
}

func (s *ServiceSuite) TestDecode_FailureExpiry_Retries() {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := memcache.New(memcache.WithClock(clock))
	svc := New(c, s.registry, nil, WithClock(clock))

	s.registry.On("Decode", mock.Anything, testVIN).Return(models.VehicleAttributes{}, errors.New("down")).Once()
	s.registry.On("Decode", mock.Anything, testVIN).Return(civic(), nil).Once()

	rec := svc.Decode(context.Background(), testVIN, nil)
	s.Require().False(rec.Valid)

	now = now.Add(memcache.DefaultFailureTTL - time.Second)
	rec = svc.Decode(context.Background(), testVIN, nil)
	s.Require().False(rec.Valid)
	s.registry.AssertNumberOfCalls(s.T(), "Decode", 1)

	now = now.Add(time.Second)
	rec = svc.Decode(context.Background(), testVIN, nil)
	s.Require().True(rec.Valid)
	s.registry.AssertNumberOfCalls(s.T(), "Decode", 2)
}

func (s *ServiceSuite) TestDecode_ValidityInvariant() {
	cases := []models.VehicleAttributes{
		civic(),
		{Year: str("2010"), Make: str("Honda")},
		{Year: str(""), Make: str("Honda"), Model: str("Civic")},
		{},
	}
	for _, attrs := range cases {
		s.cache.Clear()
		reg := &vehiclesmocks.MockProvider{}
		reg.On("Name").Return("vpic").Maybe()
		reg.On("Decode", mock.Anything, testVIN).Return(attrs, nil).Once()
		rec := New(s.cache, reg, nil).Decode(context.Background(), testVIN, nil)

		want := attrs.Year != nil && *attrs.Year != "" &&
			attrs.Make != nil && *attrs.Make != "" &&
			attrs.Model != nil && *attrs.Model != ""
		s.Require().Equal(want, rec.Valid)
		s.Require().Equal(!want, rec.Error != nil)
	}
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
