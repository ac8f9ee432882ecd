package users

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
)

const (
	oneMinute                 = 60
	profileCacheExpireSeconds = 10 * oneMinute
)

type serviceRepo interface {
	GetByID(ctx context.Context, id int) (*User, error)
	UpdateProfile(ctx context.Context, userID int, profile Profile) error
}

// Service caches user profiles in front of the repo. Profiles are read
// on every body metric create (BMI) and workout create (calorie
// estimation), so they get a short lived in-process cache.
type Service struct {
	repo  serviceRepo
	cache *freecache.Cache
}

func NewService(repo serviceRepo) *Service {
	megabyte := 1024 * 1024
	cacheSize := 10 * megabyte

	return &Service{
		repo:  repo,
		cache: freecache.NewCache(cacheSize),
	}
}

func (s *Service) GetProfile(ctx context.Context, userID int) (Profile, error) {
	cacheKey := []byte(strconv.Itoa(userID))
	if cached, err := s.cache.Get(cacheKey); err == nil {
		var profile Profile
		if err := json.Unmarshal(cached, &profile); err == nil {
			return profile, nil
		}
		log.Warnf("failed to unmarshal cached profile for user %d, falling back to repo", userID)
	}

	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	profileBytes, err := json.Marshal(user.Profile)
	if err == nil {
		if err := s.cache.Set(cacheKey, profileBytes, profileCacheExpireSeconds); err != nil {
			log.Warnf("failed to cache profile for user %d: %s", userID, err)
		}
	}

	return user.Profile, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int, profile Profile) error {
	if err := s.repo.UpdateProfile(ctx, userID, profile); err != nil {
		return err
	}
	s.cache.Del([]byte(strconv.Itoa(userID)))
	return nil
}
