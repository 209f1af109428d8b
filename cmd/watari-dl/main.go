package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ashiyu/watari"
)

func main() {
	// 1. Parse command-line arguments
	id := flag.String("id", "", "Content id to download")
	mediaType := flag.String("t", "episode", "Content type (episode, movie, music-video, concert)")
	output := flag.String("o", "output.ts", "Output file")
	logLevel := flag.String("L", "info", "Log level (error, warn, info, debug)")
	hardSub := flag.String("hardsub", "", "Burned-in subtitle locale (e.g. en-US), empty for none")
	quality := flag.String("q", "best", "Quality (best, worst or WIDTHxHEIGHT)")
	goroutines := flag.Int("g", 4, "Parallel segment downloads")
	user := flag.String("user", "", "Account email or username")
	password := flag.String("pass", "", "Account password")
	refreshToken := flag.String("refresh-token", "", "Refresh token from an earlier login")
	flag.Parse()

	log := watari.NewLogger(*logLevel)
	if *id == "" {
		log.Errorf("No content id given, see -h")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Log in
	client := watari.New(watari.WithLogger(log))
	var err error
	switch {
	case *refreshToken != "":
		err = client.LoginWithRefreshToken(ctx, *refreshToken)
	case *user != "":
		err = client.LoginWithCredentials(ctx, *user, *password)
	default:
		err = client.LoginAnonymously(ctx)
	}
	if err != nil {
		log.Errorf("Login failed: %v", err)
		os.Exit(1)
	}

	if err := run(ctx, client, log, *mediaType, *id, *hardSub, *quality, *goroutines, *output); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, client *watari.Client, log watari.Logger, mediaType, id, hardSub, quality string, goroutines int, output string) error {
	// 3. Fetch the content entity
	content, title, err := fetchContent(ctx, client, mediaType, id)
	if err != nil {
		return fmt.Errorf("failed to fetch %s %s: %w", mediaType, id, err)
	}
	log.Infof("Downloading %q", title)

	// 4. Negotiate playback, preferring the clear delivery path
	stream, err := content.StreamMaybeWithoutDRM(ctx)
	if err != nil {
		return fmt.Errorf("playback negotiation failed: %w", err)
	}
	// The session slot stays occupied until the token is invalidated.
	defer func() {
		if err := stream.Invalidate(context.Background()); err != nil {
			log.Warnf("Failed to invalidate playback token: %v", err)
		}
	}()

	variants, err := stream.Variants(ctx, watari.Locale(hardSub))
	if err != nil {
		return fmt.Errorf("failed to resolve manifest: %w", err)
	}
	variant, err := pickVariant(variants, quality)
	if err != nil {
		return err
	}
	if variant.PSSH != "" {
		return fmt.Errorf("variant %s is DRM protected, cannot download", variant.ID)
	}
	log.Infof("Selected variant %s (%s, %d bit/s, %.3f fps)", variant.ID, variant.Resolution, variant.Bandwidth, variant.FPS)

	segments, err := variant.Segments(ctx)
	if err != nil {
		return fmt.Errorf("segment planning failed: %w", err)
	}
	log.Infof("Fetching %d segments", len(segments))

	// 5. Download
	file, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	defer file.Close()

	if err := watari.DownloadSegments(ctx, segments, goroutines, file); err != nil {
		return fmt.Errorf("download failed: %w", err)
	}
	log.Infof("Wrote %s", output)
	return nil
}

func fetchContent(ctx context.Context, client *watari.Client, mediaType, id string) (watari.Streamable, string, error) {
	switch mediaType {
	case "episode":
		episode, err := watari.EpisodeFromID(ctx, client, id)
		if err != nil {
			return nil, "", err
		}
		title := fmt.Sprintf("%s S%02dE%02d - %s", episode.SeriesTitle, episode.SeasonNumber, episode.EpisodeNumber, episode.Title)
		return episode, title, nil
	case "movie":
		movie, err := watari.MovieFromID(ctx, client, id)
		if err != nil {
			return nil, "", err
		}
		return movie, movie.Title, nil
	case "music-video":
		video, err := watari.MusicVideoFromID(ctx, client, id)
		if err != nil {
			return nil, "", err
		}
		return video, fmt.Sprintf("%s - %s", video.Artist.Name, video.Title), nil
	case "concert":
		concert, err := watari.ConcertFromID(ctx, client, id)
		if err != nil {
			return nil, "", err
		}
		return concert, fmt.Sprintf("%s - %s", concert.Artist.Name, concert.Title), nil
	}
	return nil, "", fmt.Errorf("unknown content type %q", mediaType)
}

func pickVariant(variants []watari.Variant, quality string) (*watari.Variant, error) {
	candidates := make([]*watari.Variant, 0, len(variants))
	for i := range variants {
		if !variants[i].Audio {
			candidates = append(candidates, &variants[i])
		}
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("manifest has no video variants")
	}

	switch quality {
	case "best", "":
		best := candidates[0]
		for _, v := range candidates[1:] {
			if v.Bandwidth > best.Bandwidth {
				best = v
			}
		}
		return best, nil
	case "worst":
		worst := candidates[0]
		for _, v := range candidates[1:] {
			if v.Bandwidth < worst.Bandwidth {
				worst = v
			}
		}
		return worst, nil
	}

	for _, v := range candidates {
		if v.Resolution.String() == quality {
			return v, nil
		}
	}
	available := make([]string, 0, len(candidates))
	for _, v := range candidates {
		available = append(available, v.Resolution.String())
	}
	return nil, fmt.Errorf("no %s variant, available: %s", quality, strings.Join(available, ", "))
}
