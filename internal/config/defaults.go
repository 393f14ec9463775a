package config

const (
	defaultInboxDir         = "~/mediashelf/checkin"
	defaultArchiveDir       = "~/mediashelf/media"
	defaultThumbnailDir     = "~/mediashelf/thumbnail"
	defaultDatabasePath     = "~/mediashelf/database/videos.db"
	defaultLogDir           = "~/.local/share/mediashelf/logs"
	defaultAPIBind          = "127.0.0.1:7490"
	defaultCollisionPolicy  = "disambiguate"
	defaultLockTimeout      = 5
	defaultFFmpegBinary     = "ffmpeg"
	defaultFFprobeBinary    = "ffprobe"
	defaultSeekOffset       = "00:00:10"
	defaultThumbnailTimeout = 120
	defaultOpticalDrive     = "/dev/sr0"
	defaultLabelTimeout     = 10
	defaultWatchDebounce    = 5
	defaultWatchRescan      = 300
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
)

// defaultExtensions mirrors the media types the inbox historically accepted.
var defaultExtensions = []string{"mp4", "mkv", "webm", "mov", "mp3", "avi", "flv"}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			InboxDir:     defaultInboxDir,
			ArchiveDir:   defaultArchiveDir,
			ThumbnailDir: defaultThumbnailDir,
			DatabasePath: defaultDatabasePath,
			LogDir:       defaultLogDir,
			APIBind:      defaultAPIBind,
		},
		Checkin: Checkin{
			Extensions:      append([]string(nil), defaultExtensions...),
			CollisionPolicy: defaultCollisionPolicy,
			LockTimeout:     defaultLockTimeout,
		},
		Thumbnail: Thumbnail{
			Enabled:       true,
			FFmpegBinary:  defaultFFmpegBinary,
			FFprobeBinary: defaultFFprobeBinary,
			SeekOffset:    defaultSeekOffset,
			Timeout:       defaultThumbnailTimeout,
		},
		Volume: Volume{
			Device:       defaultOpticalDrive,
			LabelTimeout: defaultLabelTimeout,
		},
		Watch: Watch{
			DebounceSeconds: defaultWatchDebounce,
			RescanSeconds:   defaultWatchRescan,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
