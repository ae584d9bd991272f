package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"google.golang.org/genai"

	adapterasr "github.com/reelsub/dubpipe/internal/adapter/asr"
	adaptermt "github.com/reelsub/dubpipe/internal/adapter/mt"
	"github.com/reelsub/dubpipe/internal/adapter/objectstore"
	adaptertts "github.com/reelsub/dubpipe/internal/adapter/tts"
	"github.com/reelsub/dubpipe/internal/align"
	"github.com/reelsub/dubpipe/internal/config"
	"github.com/reelsub/dubpipe/internal/media/ffmpeg"
	"github.com/reelsub/dubpipe/internal/media/probe"
	dubmt "github.com/reelsub/dubpipe/internal/mt"
	"github.com/reelsub/dubpipe/internal/mix"
	"github.com/reelsub/dubpipe/internal/phases"
	"github.com/reelsub/dubpipe/internal/pipeline/namedict"
	"github.com/reelsub/dubpipe/internal/tts"
	"github.com/reelsub/dubpipe/pkg/doubaospeech"
	"github.com/reelsub/dubpipe/pkg/storage"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// build assembles every adapter and phase this run needs from cfg and the
// process environment, per spec §6's list of environment variables each
// adapter (not the core) checks for presence.
func build(ctx context.Context, cfg *config.Config) (*phases.Set, error) {
	ffRunner := &ffmpeg.Runner{BinPath: stringOr(cfg.Raw["ffmpeg_path"], "ffmpeg")}
	ffprobePath := stringOr(cfg.Raw["ffprobe_path"], "ffprobe")

	files, presigner, err := buildObjectStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("dubctl: object store: %w", err)
	}
	store := objectstore.New(files, presigner)

	asrClient, resourceID, language, err := buildASRClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("dubctl: asr client: %w", err)
	}

	dict, err := namedict.Open(stringOr(cfg.Raw["name_dict_dir"], "namedict"))
	if err != nil {
		return nil, fmt.Errorf("dubctl: open name dictionary: %w", err)
	}

	translate, openaiClient, err := buildTranslate(cfg)
	if err != nil {
		return nil, fmt.Errorf("dubctl: mt engine: %w", err)
	}

	synth, engine, engineVer, err := buildSynthesizer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("dubctl: tts engine: %w", err)
	}

	mixPolicy := mix.DefaultTunables()
	// No fallback mode: an unset phases.mix.mode fails the mix phase.
	mixPolicy.Mode = mix.Mode(stringOr(cfg.PhaseConfig("mix")["mode"], ""))
	if v, ok := cfg.PhaseConfig("mix")["mute_original"].(bool); ok {
		mixPolicy.MuteOriginal = v
	}

	set := &phases.Set{
		Demux: &phases.DemuxPhase{Ops: ffRunner},
		Sep: &phases.SepPhase{
			Separator: phases.CommandSeparator{BinPath: stringOr(cfg.Raw["separator_path"], "")},
			PCM:       ffRunner,
			ProbeFmt:  probe.AudioFormat,
		},
		ASR: &phases.ASRPhase{
			Uploader:     store,
			Client:       asrClient,
			ResourceID:   resourceID,
			Language:     language,
			PollInterval: 2 * time.Second,
			MaxWait:      10 * time.Minute,
		},
		Sub: &phases.SubPhase{
			ProbeDuration: func(ctx context.Context, path string) (int64, error) {
				return probe.DurationMs(ctx, ffprobePath, path)
			},
		},
		MT: &phases.MTPhase{
			Translate:   translate,
			BuildPrompt: dubmt.DefaultPromptBuilder(stringOr(cfg.Raw["slang_glossary"], "")),
			Dict:        dict,
			CompleteName: completeNameFunc(translate, openaiClient),
		},
		Align: &phases.AlignPhase{Policy: align.DefaultPolicy()},
		TTS: &phases.TTSPhase{
			Synth: synth,
			ProbeDuration: func(ctx context.Context, path string) (int64, error) {
				return probe.DurationMs(ctx, ffprobePath, path)
			},
			Ops:        ffRunner,
			Voices:     voiceTableFromConfig(cfg),
			CacheDir:   stringOr(cfg.Raw["tts_cache_dir"], ""),
			Engine:     engine,
			EngineVer:  engineVer,
			Lang:       "en",
			Format:     "wav",
			SampleRate: adaptertts.CacheSampleRate,
			Channels:   adaptertts.CacheChannels,
		},
		Mix: &phases.MixPhase{Runner: ffRunner, Policy: mixPolicy},
		Burn: &phases.BurnPhase{Ops: ffRunner},
	}

	return set, nil
}

func buildObjectStore(cfg *config.Config) (storage.FileStore, objectstore.Presigner, error) {
	bucket := os.Getenv("TOS_BUCKET")
	if bucket == "" {
		dir := stringOr(cfg.Raw["local_store_dir"], "store")
		local, err := storage.NewLocal(dir)
		if err != nil {
			return nil, nil, err
		}
		return local, &objectstore.LocalPresigner{Dir: dir}, nil
	}

	accessKey := os.Getenv("TOS_ACCESS_KEY_ID")
	secretKey := os.Getenv("TOS_SECRET_ACCESS_KEY")
	region := os.Getenv("TOS_REGION")
	endpoint := os.Getenv("TOS_ENDPOINT")
	if accessKey == "" || secretKey == "" {
		return nil, nil, fmt.Errorf("TOS_BUCKET set but TOS_ACCESS_KEY_ID/TOS_SECRET_ACCESS_KEY missing")
	}

	awsCfg := awssdk.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = true
	})

	prefix := stringOr(cfg.Raw["object_prefix"], "")
	return storage.NewS3(client, bucket, prefix), objectstore.NewS3Presigner(client, bucket, prefix), nil
}

func buildASRClient(cfg *config.Config) (adapterasr.Client, string, string, error) {
	appID := os.Getenv("DOUBAO_APPID")
	token := os.Getenv("DOUBAO_ACCESS_TOKEN")
	if appID == "" || token == "" {
		return nil, "", "", fmt.Errorf("DOUBAO_APPID/DOUBAO_ACCESS_TOKEN not set")
	}
	client := doubaospeech.NewClient(appID, doubaospeech.WithBearerToken(token))
	resourceID := stringOr(cfg.PhaseConfig("asr")["resource_id"], "volc.bigasr.auc")
	language := stringOr(cfg.PhaseConfig("asr")["language"], "zh-CN")
	return adapterasr.NewDoubaoClient(client), resourceID, language, nil
}

// buildTranslate resolves the configured MT engine (explicit config, model
// prefix, or global default) into a retrying TranslateFunc. It falls back
// to the other engine only when phases.mt.fallback_enabled is true and
// that engine's API key is set; fallback is off by default. It also returns the
// OpenAI client when one was built, so name completion can use its
// schema-constrained JSON path instead of a free-text prompt; the client
// is nil when the run has no OPENAI_API_KEY.
func buildTranslate(cfg *config.Config) (dubmt.TranslateFunc, *adaptermt.OpenAIClient, error) {
	explicit, _ := cfg.PhaseConfig("mt")["engine"].(string)
	engine, err := dubmt.ResolveEngine(explicit, cfg.MTModel, cfg.MTEngine)
	if err != nil {
		return nil, nil, err
	}

	var primary, secondary dubmt.TranslateFunc
	openaiKey := os.Getenv("OPENAI_API_KEY")
	geminiKey := os.Getenv("GEMINI_API_KEY")

	var openaiFn, geminiFn dubmt.TranslateFunc
	var openaiClient *adaptermt.OpenAIClient
	if openaiKey != "" {
		client := openai.NewClient(option.WithAPIKey(openaiKey))
		openaiClient = &adaptermt.OpenAIClient{Client: &client, Model: cfg.MTModel, Temperature: 0.2}
		openaiFn = openaiClient.AsTranslateFunc()
	}
	if geminiKey != "" {
		genaiClient, err := genai.NewClient(context.Background(), &genai.ClientConfig{APIKey: geminiKey})
		if err != nil {
			return nil, nil, fmt.Errorf("genai client: %w", err)
		}
		c := &adaptermt.GeminiClient{Client: genaiClient, Model: cfg.MTModel, Temperature: 0.2}
		geminiFn = c.AsTranslateFunc()
	}

	switch engine {
	case "openai":
		primary, secondary = openaiFn, geminiFn
	default:
		primary, secondary = geminiFn, openaiFn
	}
	if primary == nil {
		return nil, nil, fmt.Errorf("mt engine %q has no credentials configured", engine)
	}

	retried := adaptermt.WithRetry(primary, adaptermt.DefaultMaxRetries, adaptermt.DefaultBackoff)
	fallbackEnabled, _ := cfg.PhaseConfig("mt")["fallback_enabled"].(bool)
	if secondary == nil || !fallbackEnabled {
		return retried, openaiClient, nil
	}
	return adaptermt.WithFallback(retried, adaptermt.WithRetry(secondary, adaptermt.DefaultMaxRetries, adaptermt.DefaultBackoff)), openaiClient, nil
}

// completeNameFunc resolves a source-language personal name to its stable
// English transliteration. When an OpenAI client is available it uses the
// schema-constrained JSON completion so the result never needs ad hoc
// trimming of quotes or commentary; otherwise it falls back to asking the
// active translate_fn (e.g. Gemini) with a plain-text prompt.
func completeNameFunc(translate dubmt.TranslateFunc, openaiClient *adaptermt.OpenAIClient) func(ctx context.Context, sourceName string) (string, error) {
	if openaiClient != nil {
		return openaiClient.CompleteNameJSON
	}
	return func(ctx context.Context, sourceName string) (string, error) {
		prompt := fmt.Sprintf("Give the standard English transliteration of the Chinese personal name %q. Reply with only the English name, no punctuation or explanation.", sourceName)
		return translate(ctx, prompt)
	}
}

func buildSynthesizer(ctx context.Context, cfg *config.Config) (tts.Synthesizer, string, string, error) {
	appID := os.Getenv("APP_ID")
	accessKey := os.Getenv("ACCESS_KEY")
	if appID == "" || accessKey == "" {
		return nil, "", "", fmt.Errorf("APP_ID/ACCESS_KEY not set")
	}
	client := doubaospeech.NewClient(appID, doubaospeech.WithV2APIKey(accessKey, appID))
	resourceID := stringOr(cfg.PhaseConfig("tts")["resource_id"], "seed-tts-2.0")
	return adaptertts.New(ctx, client, resourceID), "doubao", resourceID, nil
}

// voiceTableFromConfig builds a phases.VoiceTable from the
// phases.tts.voice_map config subtree: speaker name -> voice id. A speaker
// absent from the map falls back to the gender-keyed default ("male" or
// "female"), and ultimately to a single hardcoded default voice.
func voiceTableFromConfig(cfg *config.Config) phases.VoiceTable {
	voiceMap, _ := cfg.PhaseConfig("tts")["voice_map"].(map[string]any)
	return func(speaker, gender string) tts.VoiceResolution {
		voiceID := "en_male_default"
		if v, ok := voiceMap[speaker].(string); ok && v != "" {
			voiceID = v
		} else if v, ok := voiceMap[gender].(string); ok && v != "" {
			voiceID = v
		}
		return tts.VoiceResolution{VoiceID: voiceID, Lang: "en"}
	}
}

func stringOr(v any, fallback string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return fallback
}
