package fetch

import (
	"net/url"
	"strings"
)

// Platform represents a known job board platform.
type Platform string

const (
	// PlatformGreenhouse is the Greenhouse ATS platform
	PlatformGreenhouse Platform = "greenhouse"
	// PlatformLever is the Lever ATS platform
	PlatformLever Platform = "lever"
	// PlatformWorkday is the Workday ATS platform
	PlatformWorkday Platform = "workday"
	// PlatformUnknown is an unrecognized platform
	PlatformUnknown Platform = "unknown"
)

// DetectPlatform identifies the job board platform from a URL.
func DetectPlatform(urlStr string) Platform {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return PlatformUnknown
	}

	host := strings.ToLower(parsed.Host)
	switch {
	case strings.Contains(host, "greenhouse.io"):
		return PlatformGreenhouse
	case strings.Contains(host, "lever.co"):
		return PlatformLever
	case strings.Contains(host, "workday.com"), strings.Contains(host, "myworkdayjobs.com"):
		return PlatformWorkday
	default:
		return PlatformUnknown
	}
}

// ListingSelectors maps listing fields to CSS selectors for a job board page.
// "item" selects one posting; the rest are relative to it. "link" and "email"
// read the href attribute.
type ListingSelectors map[string]string

// PlatformListingSelectors returns listing selectors for a known platform,
// or nil when the platform has no built-in layout.
func PlatformListingSelectors(platform Platform) ListingSelectors {
	switch platform {
	case PlatformGreenhouse:
		return ListingSelectors{
			"item":     "div.opening, tr.job-post",
			"title":    "a",
			"location": ".location, p.body--metadata",
			"link":     "a",
		}
	case PlatformLever:
		return ListingSelectors{
			"item":     "div.posting",
			"title":    "[data-qa='posting-name'], h5",
			"location": ".posting-categories .location, .sort-by-location",
			"link":     "a.posting-title",
			"job_type": ".posting-categories .commitment",
		}
	case PlatformWorkday:
		return ListingSelectors{
			"item":     "li.css-1q2dra3, [data-automation-id='jobResults'] li",
			"title":    "[data-automation-id='jobTitle']",
			"location": "[data-automation-id='locations'] dd",
			"link":     "a[data-automation-id='jobTitle']",
		}
	default:
		return nil
	}
}

// RequiresBrowser reports whether the platform renders its listings client-side.
func RequiresBrowser(platform Platform) bool {
	return platform == PlatformWorkday
}
