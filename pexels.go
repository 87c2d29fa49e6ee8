package main

import (
	"context"
	"encoding/json"
	"fmt"
	"golang.org/x/time/rate"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPerPage     = 15
	DefaultPexelsBase  = "https://api.pexels.com"
	pathSearchPhotos   = "/v1/search"
	pathCuratedPhotos  = "/v1/curated"
	pathSearchVideos   = "/videos/search"
	pathPopularVideos  = "/videos/popular"
	unreadableBodyText = "Unknown error"
)

type PexelsPhoto struct {
	Id              int            `json:"id"`
	Width           int            `json:"width"`
	Height          int            `json:"height"`
	Url             string         `json:"url"`
	Photographer    string         `json:"photographer"`
	PhotographerUrl string         `json:"photographer_url"`
	PhotographerId  int            `json:"photographer_id"`
	AvgColor        string         `json:"avg_color"`
	Src             PexelsPhotoSrc `json:"src"`
	Liked           bool           `json:"liked"`
	Alt             string         `json:"alt"`
}

type PexelsPhotoSrc struct {
	Original  string `json:"original"`
	Large2x   string `json:"large2x"`
	Large     string `json:"large"`
	Medium    string `json:"medium"`
	Small     string `json:"small"`
	Portrait  string `json:"portrait"`
	Landscape string `json:"landscape"`
	Tiny      string `json:"tiny"`
}

func (p PexelsPhoto) MediaID() int    { return p.Id }
func (p PexelsPhoto) MediaKind() Kind { return KindImage }

type PexelsVideo struct {
	Id            int                  `json:"id"`
	Width         int                  `json:"width"`
	Height        int                  `json:"height"`
	Url           string               `json:"url"`
	Image         string               `json:"image"`
	Duration      int                  `json:"duration"`
	User          PexelsUser           `json:"user"`
	VideoFiles    []PexelsVideoFile    `json:"video_files"`
	VideoPictures []PexelsVideoPicture `json:"video_pictures"`
}

type PexelsUser struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
	Url  string `json:"url"`
}

type PexelsVideoFile struct {
	Id       int     `json:"id"`
	Quality  string  `json:"quality"`
	FileType string  `json:"file_type"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Fps      float32 `json:"fps"`
	Link     string  `json:"link"`
}

type PexelsVideoPicture struct {
	Id      int    `json:"id"`
	Picture string `json:"picture"`
	Nr      int    `json:"nr"`
}

func (v PexelsVideo) MediaID() int    { return v.Id }
func (v PexelsVideo) MediaKind() Kind { return KindVideo }

type PexelsPhotoResult struct {
	TotalResults int           `json:"total_results"`
	Page         int           `json:"page"`
	PerPage      int           `json:"per_page"`
	Photos       []PexelsPhoto `json:"photos"`
	NextPage     string        `json:"next_page,omitempty"`
	PrevPage     string        `json:"prev_page,omitempty"`
}

type PexelsVideoResult struct {
	TotalResults int           `json:"total_results"`
	Page         int           `json:"page"`
	PerPage      int           `json:"per_page"`
	Videos       []PexelsVideo `json:"videos"`
	NextPage     string        `json:"next_page,omitempty"`
	PrevPage     string        `json:"prev_page,omitempty"`
}

// StatusError is returned when Pexels answers with a non-2xx status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Pexels API error (%d): %s", e.Status, e.Body)
}

func (e *StatusError) StatusCode() int { return e.Status }

type PexelsApi struct {
	Http    *http.Client
	cache   *ReqCache
	apiKey  string
	baseUrl string
	log     *log.Logger
}

func NewPexelsApi(cfg *Config, cache *ReqCache) *PexelsApi {
	limit := rate.Inf
	if cfg.Pexels.RequestsPerHour > 0 {
		limit = rate.Every(time.Hour / time.Duration(cfg.Pexels.RequestsPerHour))
	}
	burst := cfg.Pexels.Burst
	if burst < 1 {
		burst = 1
	}
	return &PexelsApi{
		Http: &http.Client{
			Timeout: time.Duration(cfg.Pexels.TimeoutSeconds) * time.Second,
			Transport: &limitedTransport{
				limiter: rate.NewLimiter(limit, burst),
				next:    http.DefaultTransport,
			},
		},
		cache:   cache,
		apiKey:  cfg.Pexels.Key,
		baseUrl: strings.TrimRight(cfg.Pexels.BaseUrl, "/"),
		log:     log.New(os.Stderr, "(pexels) ", log.LstdFlags),
	}
}

// limitedTransport waits for the limiter before every request that reaches
// the network. Cached responses never get here.
type limitedTransport struct {
	limiter *rate.Limiter
	next    http.RoundTripper
}

func (t *limitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limit wait failed: %w", err)
	}
	return t.next.RoundTrip(req)
}

func (api *PexelsApi) SearchPhotos(ctx context.Context, req SearchRequest) (ResultPage[PexelsPhoto], error) {
	data, err := pexelsFetch[PexelsPhotoResult](ctx, api, pathSearchPhotos, searchParams(req))
	if err != nil {
		return ResultPage[PexelsPhoto]{}, err
	}
	return photoPage(data), nil
}

func (api *PexelsApi) CuratedPhotos(ctx context.Context, page int, perPage int) (ResultPage[PexelsPhoto], error) {
	data, err := pexelsFetch[PexelsPhotoResult](ctx, api, pathCuratedPhotos, pageParams(page, perPage))
	if err != nil {
		return ResultPage[PexelsPhoto]{}, err
	}
	return photoPage(data), nil
}

func (api *PexelsApi) SearchVideos(ctx context.Context, req SearchRequest) (ResultPage[PexelsVideo], error) {
	data, err := pexelsFetch[PexelsVideoResult](ctx, api, pathSearchVideos, searchParams(req))
	if err != nil {
		return ResultPage[PexelsVideo]{}, err
	}
	return videoPage(data), nil
}

func (api *PexelsApi) PopularVideos(ctx context.Context, page int, perPage int) (ResultPage[PexelsVideo], error) {
	data, err := pexelsFetch[PexelsVideoResult](ctx, api, pathPopularVideos, pageParams(page, perPage))
	if err != nil {
		return ResultPage[PexelsVideo]{}, err
	}
	return videoPage(data), nil
}

func photoPage(data PexelsPhotoResult) ResultPage[PexelsPhoto] {
	return ResultPage[PexelsPhoto]{
		Items:        data.Photos,
		TotalResults: data.TotalResults,
		Page:         data.Page,
		PerPage:      data.PerPage,
	}
}

func videoPage(data PexelsVideoResult) ResultPage[PexelsVideo] {
	return ResultPage[PexelsVideo]{
		Items:        data.Videos,
		TotalResults: data.TotalResults,
		Page:         data.Page,
		PerPage:      data.PerPage,
	}
}

func searchParams(req SearchRequest) url.Values {
	qParam := pageParams(req.Page, req.PerPage)
	setParam(qParam, "query", req.Query)
	setParam(qParam, "orientation", string(req.Orientation))
	return qParam
}

func pageParams(page int, perPage int) url.Values {
	if page < 1 {
		page = 1
	}
	if perPage <= 0 {
		perPage = DefaultPerPage
	}
	qParam := url.Values{}
	qParam.Set("page", strconv.Itoa(page))
	qParam.Set("per_page", strconv.Itoa(perPage))
	return qParam
}

// setParam leaves empty values out of the query string entirely.
func setParam(qParam url.Values, key string, value string) {
	if value != "" {
		qParam.Set(key, value)
	}
}

func pexelsFetch[T any](ctx context.Context, api *PexelsApi, endpoint string, qParam url.Values) (T, error) {
	var data T
	getReq, err := http.NewRequestWithContext(ctx, http.MethodGet, api.baseUrl+endpoint+"?"+qParam.Encode(), nil)
	if err != nil {
		api.log.Println("Failed to create http request:", err)
		return data, err
	}
	if api.apiKey != "" {
		getReq.Header.Set("Authorization", api.apiKey)
	}

	var res *http.Response
	if api.cache != nil {
		res, err = api.cache.CachedFetch(getReq, api.Http)
	} else {
		res, err = api.Http.Do(getReq)
	}
	if err != nil {
		api.log.Println("Failed to fetch:", err)
		return data, err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body := unreadableBodyText
		if b, err := io.ReadAll(res.Body); err == nil {
			body = string(b)
		}
		api.log.Printf("%s answered %d", endpoint, res.StatusCode)
		return data, &StatusError{Status: res.StatusCode, Body: body}
	}

	if err := json.NewDecoder(res.Body).Decode(&data); err != nil {
		api.log.Println("Failed to decode response", err)
		return data, fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return data, nil
}
