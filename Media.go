package main

import (
	"context"
	"fmt"
	"strings"
)

type Kind string

const (
	KindImage Kind = "photos"
	KindVideo Kind = "videos"
)

func (k Kind) Valid() bool {
	return k == KindImage || k == KindVideo
}

func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "photos", "photo", "images", "image":
		return KindImage, nil
	case "videos", "video":
		return KindVideo, nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

type Orientation string

const (
	OrientationAny       Orientation = ""
	OrientationLandscape Orientation = "landscape"
	OrientationPortrait  Orientation = "portrait"
	OrientationSquare    Orientation = "square"
)

func ParseOrientation(s string) (Orientation, error) {
	switch o := Orientation(strings.ToLower(strings.TrimSpace(s))); o {
	case OrientationAny, OrientationLandscape, OrientationPortrait, OrientationSquare:
		return o, nil
	}
	return "", fmt.Errorf("unknown orientation %q", s)
}

type SearchRequest struct {
	Query       string
	Kind        Kind
	Page        int
	PerPage     int
	Orientation Orientation
}

type ResultPage[T any] struct {
	Items        []T `json:"items"`
	TotalResults int `json:"totalResults"`
	Page         int `json:"page"`
	PerPage      int `json:"perPage"`
}

// Media is a single search result, either a PexelsPhoto or a PexelsVideo.
type Media interface {
	MediaID() int
	MediaKind() Kind
}

// MediaSearcher is the upstream the SearchController pages through.
type MediaSearcher interface {
	SearchPhotos(ctx context.Context, req SearchRequest) (ResultPage[PexelsPhoto], error)
	SearchVideos(ctx context.Context, req SearchRequest) (ResultPage[PexelsVideo], error)
	CuratedPhotos(ctx context.Context, page int, perPage int) (ResultPage[PexelsPhoto], error)
	PopularVideos(ctx context.Context, page int, perPage int) (ResultPage[PexelsVideo], error)
}
