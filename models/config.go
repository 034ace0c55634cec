package models

type ConfigStruct struct {
	Timezone                 string              `json:"timezone"`
	MusicTunePort            int                 `json:"musictune_port"`
	MusicTuneName            string              `json:"musictune_name"`
	MusicTuneExternalURL     string              `json:"musictune_external_url"`
	MusicTuneVersion         string              `json:"musictune_version"`
	MusicTuneEnvironment     string              `json:"musictune_environment"`
	MusicTuneLogLevel        string              `json:"musictune_log_level"`
	SubsonicUser             string              `json:"subsonic_user"`
	SubsonicPassword         string              `json:"subsonic_password"`
	TuneHubAPIKey            string              `json:"tunehub_api_key"`
	TuneHubBaseURL           string              `json:"tunehub_base_url"`
	DefaultPlatform          string              `json:"default_platform"`
	DefaultQuality           string              `json:"default_quality"`
	AudioCacheDirectory      string              `json:"audio_cache_directory"`
	AudioCacheMaxSizeBytes   int64               `json:"audio_cache_max_size_bytes"`
	URLCacheTTLMinutes       int                 `json:"url_cache_ttl_minutes"`
	AllowedPlaylists         map[string][]string `json:"allowed_playlists"`
	CachePersistCronSchedule string              `json:"cache_persist_cron_schedule"`
	AudioSweepCronSchedule   string              `json:"audio_sweep_cron_schedule"`
}
