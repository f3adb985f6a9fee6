package extractor

import "regexp"

// Platform is a supported video source.
type Platform string

const (
	PlatformYouTube   Platform = "youtube"
	PlatformFacebook  Platform = "facebook"
	PlatformTwitter   Platform = "twitter"
	PlatformInstagram Platform = "instagram"
	PlatformTikTok    Platform = "tiktok"
)

// String returns the platform name
func (p Platform) String() string {
	return string(p)
}

// DisplayName returns the name shown to users
func (p Platform) DisplayName() string {
	switch p {
	case PlatformYouTube:
		return "YouTube"
	case PlatformFacebook:
		return "Facebook"
	case PlatformTwitter:
		return "X (Twitter)"
	case PlatformInstagram:
		return "Instagram"
	case PlatformTikTok:
		return "TikTok"
	default:
		return string(p)
	}
}

// platformRule binds a platform to the URL shapes it accepts.
// Patterns are anchored at the start of the URL only, so trailing text never prevents a match.
type platformRule struct {
	platform Platform
	patterns []*regexp.Regexp
}

// platformRules is evaluated in order and the first matching pattern wins.
var platformRules = []platformRule{
	{
		platform: PlatformYouTube,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?youtube\.com/watch\?v=[\w-]+`),
			regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?youtu\.be/[\w-]+`),
			regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?youtube\.com/shorts/[\w-]+`),
		},
	},
	{
		platform: PlatformFacebook,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?facebook\.com/.*?/videos/\d+`),
			regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?fb\.watch/[\w-]+`),
		},
	},
	{
		platform: PlatformTwitter,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?twitter\.com/\w+/status/\d+`),
			regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?x\.com/\w+/status/\d+`),
		},
	},
	{
		platform: PlatformInstagram,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?instagram\.com/(?:p|reel)/[\w-]+`),
		},
	},
	{
		platform: PlatformTikTok,
		patterns: []*regexp.Regexp{
			regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?tiktok\.com/@[\w.-]+/video/\d+`),
			regexp.MustCompile(`(?i)^(?:https?://)?(?:vm\.)?tiktok\.com/[\w-]+`),
		},
	},
}

// Identify returns the platform a URL belongs to, or an empty Platform when the URL shape
// is not recognized. A supported host with an unknown path shape is not recognized.
func Identify(url string) Platform {
	for _, rule := range platformRules {
		for _, pattern := range rule.patterns {
			if pattern.MatchString(url) {
				return rule.platform
			}
		}
	}
	return ""
}

// IsSupported reports whether the URL belongs to a supported platform
func IsSupported(url string) bool {
	return Identify(url) != ""
}

// SupportedPlatforms returns all platforms in classification order
func SupportedPlatforms() []Platform {
	platforms := make([]Platform, 0, len(platformRules))
	for _, rule := range platformRules {
		platforms = append(platforms, rule.platform)
	}
	return platforms
}

// mediaIDPatterns capture the platform's media id from the URL shapes that carry one
var mediaIDPatterns = map[Platform][]*regexp.Regexp{
	PlatformYouTube: {
		regexp.MustCompile(`(?i)youtube\.com/watch\?(?:.*&)?v=([\w-]+)`),
		regexp.MustCompile(`(?i)youtu\.be/([\w-]+)`),
		regexp.MustCompile(`(?i)youtube\.com/shorts/([\w-]+)`),
	},
	PlatformFacebook:  {regexp.MustCompile(`(?i)facebook\.com/.*?/videos/(\d+)`)},
	PlatformTwitter:   {regexp.MustCompile(`(?i)(?:twitter|x)\.com/\w+/status/(\d+)`)},
	PlatformInstagram: {regexp.MustCompile(`(?i)instagram\.com/(?:p|reel)/([\w-]+)`)},
	PlatformTikTok:    {regexp.MustCompile(`(?i)tiktok\.com/@[\w.-]+/video/(\d+)`)},
}

// MediaKey identifies the media a link points at, so different URL shapes of one video
// share a key. Links without a recognizable media id are keyed by their URL.
func (l Link) MediaKey() string {
	for _, pattern := range mediaIDPatterns[l.Platform] {
		if m := pattern.FindStringSubmatch(l.URL); m != nil {
			return l.Platform.String() + ":" + m[1]
		}
	}
	return l.URL
}
