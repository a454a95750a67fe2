// Copyright (c) 2026 Kevin Zang (kevinzang). All rights reserved.
// Use of this source code is governed by the MIT License.
//
// YtdlManager - yt-dlp 下载任务管理工具

package parse

import "encoding/json"

// Phase is the lifecycle stage an Event belongs to
type Phase string

const (
	PhasePreProcessing     Phase = "Pre Processing"
	PhaseDownloading       Phase = "Downloading"
	PhasePostProcessing    Phase = "Post Processing"
	PhaseAlreadyDownloaded Phase = "Already Downloaded"
	PhaseFilesizeAbort     Phase = "Filesize Abort"
)

func (p Phase) String() string { return string(p) }

// Field keys used by Event.Fields. Consumers decide what to render by key
// presence, so a variant only ever sets its own keys.
const (
	KeyPhase         = "phase"
	KeyPath          = "path"
	KeyFilename      = "filename"
	KeyExtension     = "extension"
	KeyPercent       = "percent"
	KeyFilesize      = "filesize"
	KeySpeed         = "speed"
	KeyETA           = "eta"
	KeyPlaylistIndex = "playlist_index"
	KeyPlaylistSize  = "playlist_size"
)

// Placeholders emitted while the downloader cannot measure a value yet
const (
	SpeedUnknown   = "Unknown"
	ETAUnknown     = "ETA"
	PercentDone    = "100%"
	PercentDoneOne = "100.0%"
)

// Event is one classified output line. A nil Event means the line carried
// nothing of interest.
type Event interface {
	Phase() Phase
	Fields() map[string]string
	isEvent()
}

// Target is a file path split the way the UI shows it
type Target struct {
	Path      string `json:"path"`
	Filename  string `json:"filename"`
	Extension string `json:"extension"`
}

func (t Target) fields(p Phase) map[string]string {
	return map[string]string{
		KeyPhase:     p.String(),
		KeyPath:      t.Path,
		KeyFilename:  t.Filename,
		KeyExtension: t.Extension,
	}
}

// Name returns filename and extension joined
func (t Target) Name() string { return t.Filename + t.Extension }

// PreProcessing is emitted for metadata extraction chatter (webpage, manifests, formats)
type PreProcessing struct{}

func (PreProcessing) Phase() Phase { return PhasePreProcessing }
func (PreProcessing) Fields() map[string]string {
	return map[string]string{KeyPhase: PhasePreProcessing.String()}
}
func (PreProcessing) isEvent() {}

// PlaylistMarker announces the playlist entry about to be downloaded
type PlaylistMarker struct {
	Index string
	Size  string
}

func (PlaylistMarker) Phase() Phase { return PhaseDownloading }
func (e PlaylistMarker) Fields() map[string]string {
	return map[string]string{
		KeyPhase:         PhaseDownloading.String(),
		KeyPlaylistIndex: e.Index,
		KeyPlaylistSize:  e.Size,
	}
}
func (PlaylistMarker) isEvent() {}

// Destination names the file of the stream whose progress follows
type Destination struct {
	Target
}

func (Destination) Phase() Phase                { return PhaseDownloading }
func (e Destination) Fields() map[string]string { return e.Target.fields(PhaseDownloading) }
func (Destination) isEvent()                    {}

// Progress is a periodic transfer update. Values are kept as printed.
type Progress struct {
	Percent  string
	Filesize string
	Speed    string
	ETA      string
}

func (Progress) Phase() Phase { return PhaseDownloading }
func (e Progress) Fields() map[string]string {
	return map[string]string{
		KeyPhase:    PhaseDownloading.String(),
		KeyPercent:  e.Percent,
		KeyFilesize: e.Filesize,
		KeySpeed:    e.Speed,
		KeyETA:      e.ETA,
	}
}
func (Progress) isEvent() {}

// Completion closes a stream's transfer. It always follows the "100.0%" Progress.
type Completion struct {
	Filesize string
}

func (Completion) Phase() Phase { return PhaseDownloading }
func (e Completion) Fields() map[string]string {
	return map[string]string{
		KeyPhase:    PhaseDownloading.String(),
		KeyPercent:  PercentDone,
		KeyFilesize: e.Filesize,
		KeySpeed:    "",
		KeyETA:      "",
	}
}
func (Completion) isEvent() {}

// FragmentProgress is reported by the fragment downloaders (HLS, DASH)
type FragmentProgress struct {
	Percent string
}

func (FragmentProgress) Phase() Phase { return PhaseDownloading }
func (e FragmentProgress) Fields() map[string]string {
	return map[string]string{
		KeyPhase:   PhaseDownloading.String(),
		KeyPercent: e.Percent,
	}
}
func (FragmentProgress) isEvent() {}

// DownloadNotice is any other download-stage line, e.g. "Downloading playlist: X"
type DownloadNotice struct{}

func (DownloadNotice) Phase() Phase { return PhaseDownloading }
func (DownloadNotice) Fields() map[string]string {
	return map[string]string{KeyPhase: PhaseDownloading.String()}
}
func (DownloadNotice) isEvent() {}

// PostProcessing names the final output of a merge, conversion or fixup step
type PostProcessing struct {
	Target
}

func (PostProcessing) Phase() Phase                { return PhasePostProcessing }
func (e PostProcessing) Fields() map[string]string { return e.Target.fields(PhasePostProcessing) }
func (PostProcessing) isEvent()                    {}

// AlreadyDownloaded reports a file skipped because it exists
type AlreadyDownloaded struct {
	Target
}

func (AlreadyDownloaded) Phase() Phase                { return PhaseAlreadyDownloaded }
func (e AlreadyDownloaded) Fields() map[string]string { return e.Target.fields(PhaseAlreadyDownloaded) }
func (AlreadyDownloaded) isEvent()                    {}

// FilesizeAbort reports a download skipped by the max-filesize limit
type FilesizeAbort struct{}

func (FilesizeAbort) Phase() Phase { return PhaseFilesizeAbort }
func (FilesizeAbort) Fields() map[string]string {
	return map[string]string{KeyPhase: PhaseFilesizeAbort.String()}
}
func (FilesizeAbort) isEvent() {}

// Fields returns e.Fields(), or an empty map for a nil Event
func Fields(e Event) map[string]string {
	if e == nil {
		return map[string]string{}
	}
	return e.Fields()
}

// MarshalEvent encodes an Event as a flat JSON object; nil encodes as {}
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(Fields(e))
}
