package repository

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrInvalidFavorite = errors.New("favorite needs a name and a query")
	ErrNotOwner        = errors.New("favorite belongs to someone else")
)

// FavoritesService holds the rules around saved queries: names are trimmed,
// and only the author or a guild manager may remove one.
type FavoritesService struct {
	repo *Repo
}

func NewFavoritesService(repo *Repo) *FavoritesService {
	return &FavoritesService{repo: repo}
}

func (f *FavoritesService) Create(ctx context.Context, guild, author, name, query string) error {
	name = strings.TrimSpace(name)
	query = strings.TrimSpace(query)
	if name == "" || query == "" {
		return ErrInvalidFavorite
	}
	return f.repo.AddFavorite(ctx, &Favorite{
		GuildID: guild, Author: author, Name: name, Query: query,
	})
}

func (f *FavoritesService) Remove(ctx context.Context, guild, name, requester string, manager bool) error {
	fav, err := f.repo.FindFavorite(ctx, guild, strings.TrimSpace(name))
	if err != nil {
		return err
	}
	if fav.Author != requester && !manager {
		return ErrNotOwner
	}
	n, err := f.repo.RemoveFavorite(ctx, guild, fav.Name)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (f *FavoritesService) Use(ctx context.Context, guild, name string) (*Favorite, error) {
	return f.repo.FindFavorite(ctx, guild, strings.TrimSpace(name))
}

func (f *FavoritesService) List(ctx context.Context, guild string) ([]Favorite, error) {
	return f.repo.ListFavorites(ctx, guild)
}
