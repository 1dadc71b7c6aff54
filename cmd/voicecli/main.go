// The voicecli command records a voice complaint from the microphone and
// runs it through the transcription API, printing the progress checklist
// as the steps complete.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"civicvoice/backend/internal/capture"
	"civicvoice/backend/internal/config"
	"civicvoice/backend/internal/voice"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

func main() {
	_ = godotenv.Load()

	var (
		apiURL   = flag.String("api", "http://localhost:8080", "civicvoice API base URL")
		token    = flag.String("token", os.Getenv("CIVICVOICE_TOKEN"), "session token")
		language = flag.String("lang", "auto", "language hint")
		category = flag.String("category", "", "complaint category hint")
		duration = flag.Duration("duration", config.BasicRecordingDuration, "maximum recording duration")
		device   = flag.String("device", "default", "microphone input device")
		format   = flag.String("format", "pulse", "ffmpeg input format")
		enhance  = flag.Bool("enhance", true, "run grammar/clarity enhancement on the transcript")
		stream   = flag.Bool("stream", false, "transcribe in real time instead of after recording")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	recorder := capture.NewRecorder("")
	client := voice.NewClient(*apiURL, *token, renderSteps, log)
	cfg := capture.Config{
		InputDevice: *device,
		InputFormat: *format,
		MaxDuration: *duration,
	}

	if *stream {
		runStream(ctx, recorder, client, cfg, *language, *category, log)
		return
	}

	fmt.Println("Recording... press Ctrl+C to stop.")
	audio, err := recorder.Record(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("recording failed")
	}
	fmt.Printf("Recorded %.1fs of audio.\n", capture.WAVDuration(audio, 16000, 1))

	// The recording survives Ctrl+C; a second interrupt cancels the upload.
	ctx, cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result := client.Transcribe(ctx, audio, voice.Options{
		Language: *language,
		Category: *category,
		Enhance:  *enhance,
	})
	switch {
	case result.Cancelled:
		fmt.Println("\nCancelled.")
		os.Exit(1)
	case result.Error != nil:
		log.Fatal().Err(result.Error).Msg("transcription failed")
	}

	fmt.Println("\nTranscript:")
	fmt.Println(result.Transcription)
	if result.EnhancedText != "" {
		fmt.Println("\nEnhanced:")
		fmt.Println(result.EnhancedText)
	}
}

func runStream(ctx context.Context, recorder *capture.Recorder, client *voice.Client, cfg capture.Config, language, category string, log zerolog.Logger) {
	session, err := recorder.Start(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start capture")
	}
	defer session.Stop()

	fmt.Println("Streaming... press Ctrl+C to stop.")
	transcript, err := client.Stream(ctx, session, voice.StreamConfig{
		Language: language,
		Category: category,
	})
	if err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("streaming failed")
	}

	fmt.Println("\nTranscript:")
	fmt.Println(transcript)
}

// renderSteps redraws the checklist on every progress update.
func renderSteps(steps []voice.Step) {
	for _, step := range steps {
		mark := " "
		if step.Completed {
			mark = "x"
		}
		fmt.Printf("\r[%s] %-40s", mark, step.Message)
	}
	if len(steps) > 0 && steps[len(steps)-1].Completed {
		fmt.Println()
	}
}
