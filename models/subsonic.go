package models

import "encoding/xml"

const (
	SubsonicVersion    = "1.16.1"
	SubsonicServerName = "MusicTune Subsonic Proxy"
)

// SubsonicResponse is the root element of every Subsonic API reply,
// rendered as XML by default or JSON when the client asks for f=json.
type SubsonicResponse struct {
	XMLName       xml.Name       `xml:"subsonic-response" json:"-"`
	Xmlns         string         `xml:"xmlns,attr" json:"-"`
	Status        string         `xml:"status,attr" json:"status"`
	Version       string         `xml:"version,attr" json:"version"`
	Type          string         `xml:"type,attr" json:"type"`
	ServerVersion string         `xml:"serverVersion,attr" json:"serverVersion"`
	Error         *SubsonicError `xml:"error,omitempty" json:"error,omitempty"`

	License               *SubsonicLicense       `xml:"license,omitempty" json:"license,omitempty"`
	MusicFolders          *SubsonicMusicFolders  `xml:"musicFolders,omitempty" json:"musicFolders,omitempty"`
	Indexes               *SubsonicIndexes       `xml:"indexes,omitempty" json:"indexes,omitempty"`
	Playlists             *SubsonicPlaylists     `xml:"playlists,omitempty" json:"playlists,omitempty"`
	Playlist              *SubsonicPlaylist      `xml:"playlist,omitempty" json:"playlist,omitempty"`
	SearchResult2         *SubsonicSearchResult  `xml:"searchResult2,omitempty" json:"searchResult2,omitempty"`
	Song                  *SubsonicSong          `xml:"song,omitempty" json:"song,omitempty"`
	Lyrics                *SubsonicLyrics        `xml:"lyrics,omitempty" json:"lyrics,omitempty"`
	AlbumList2            *SubsonicAlbumList     `xml:"albumList2,omitempty" json:"albumList2,omitempty"`
	Artists               *SubsonicArtists       `xml:"artists,omitempty" json:"artists,omitempty"`
	Starred2              *SubsonicStarred       `xml:"starred2,omitempty" json:"starred2,omitempty"`
	InternetRadioStations *SubsonicRadioStations `xml:"internetRadioStations,omitempty" json:"internetRadioStations,omitempty"`
}

type SubsonicError struct {
	Code    int    `xml:"code,attr" json:"code"`
	Message string `xml:"message,attr" json:"message"`
}

type SubsonicLicense struct {
	Valid          bool   `xml:"valid,attr" json:"valid"`
	Email          string `xml:"email,attr" json:"email"`
	LicenseExpires string `xml:"licenseExpires,attr" json:"licenseExpires"`
}

type SubsonicMusicFolders struct {
	Folders []SubsonicMusicFolder `xml:"musicFolder" json:"musicFolder"`
}

type SubsonicMusicFolder struct {
	ID   string `xml:"id,attr" json:"id"`
	Name string `xml:"name,attr" json:"name"`
}

type SubsonicIndexes struct {
	LastModified    int64  `xml:"lastModified,attr" json:"lastModified"`
	IgnoredArticles string `xml:"ignoredArticles,attr" json:"ignoredArticles"`
}

type SubsonicPlaylists struct {
	Playlists []SubsonicPlaylist `xml:"playlist" json:"playlist"`
}

type SubsonicPlaylist struct {
	ID        string         `xml:"id,attr" json:"id"`
	Name      string         `xml:"name,attr" json:"name"`
	Comment   string         `xml:"comment,attr,omitempty" json:"comment,omitempty"`
	Owner     string         `xml:"owner,attr" json:"owner"`
	Public    bool           `xml:"public,attr" json:"public"`
	SongCount int            `xml:"songCount,attr" json:"songCount"`
	Duration  int            `xml:"duration,attr" json:"duration"`
	Created   string         `xml:"created,attr" json:"created"`
	Changed   string         `xml:"changed,attr" json:"changed"`
	CoverArt  string         `xml:"coverArt,attr,omitempty" json:"coverArt,omitempty"`
	Entries   []SubsonicSong `xml:"entry" json:"entry,omitempty"`
}

type SubsonicSearchResult struct {
	Songs []SubsonicSong `xml:"song" json:"song"`
}

type SubsonicSong struct {
	ID          string `xml:"id,attr" json:"id"`
	Parent      string `xml:"parent,attr" json:"parent"`
	Title       string `xml:"title,attr" json:"title"`
	Album       string `xml:"album,attr" json:"album"`
	Artist      string `xml:"artist,attr" json:"artist"`
	IsDir       bool   `xml:"isDir,attr" json:"isDir"`
	Duration    int    `xml:"duration,attr" json:"duration"`
	BitRate     int    `xml:"bitRate,attr" json:"bitRate"`
	Suffix      string `xml:"suffix,attr" json:"suffix"`
	ContentType string `xml:"contentType,attr" json:"contentType"`
	Size        int64  `xml:"size,attr" json:"size"`
	IsVideo     bool   `xml:"isVideo,attr" json:"isVideo"`
	Type        string `xml:"type,attr" json:"type"`
	AlbumID     string `xml:"albumId,attr" json:"albumId"`
	CoverArt    string `xml:"coverArt,attr,omitempty" json:"coverArt,omitempty"`
	Created     string `xml:"created,attr" json:"created"`
}

type SubsonicLyrics struct {
	Artist string `xml:"artist,attr,omitempty" json:"artist,omitempty"`
	Title  string `xml:"title,attr,omitempty" json:"title,omitempty"`
	Value  string `xml:",chardata" json:"value,omitempty"`
}

type SubsonicAlbumList struct{}

type SubsonicArtists struct {
	IgnoredArticles string `xml:"ignoredArticles,attr" json:"ignoredArticles"`
}

type SubsonicStarred struct{}

type SubsonicRadioStations struct {
	Stations []SubsonicRadioStation `xml:"internetRadioStation" json:"internetRadioStation"`
}

type SubsonicRadioStation struct {
	ID          string `xml:"id,attr" json:"id"`
	Name        string `xml:"name,attr" json:"name"`
	StreamURL   string `xml:"streamUrl,attr" json:"streamUrl"`
	HomePageURL string `xml:"homePageUrl,attr" json:"homePageUrl"`
}
