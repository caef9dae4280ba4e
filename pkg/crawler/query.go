package crawler

import "fmt"

// SearchQuery builds the image-search query for a risk. Yandex gets a more
// specific query than the other engines.
func SearchQuery(riskName, culture, riskType, selector string) string {
	if selector == "yandex" {
		if riskType == "diseases" {
			return fmt.Sprintf("%s болезнь %s фото высокое качество", riskName, culture)
		}
		return fmt.Sprintf("%s вредитель %s фото макро", riskName, culture)
	}
	if riskType == "diseases" {
		return fmt.Sprintf("%s болезнь %s фото", riskName, culture)
	}
	return fmt.Sprintf("%s вредитель %s фото", riskName, culture)
}

// AltQuery is the fallback query without the risk-type qualifier, used
// when the primary query yields no candidates
func AltQuery(riskName, culture string) string {
	return fmt.Sprintf("%s %s фото", riskName, culture)
}
