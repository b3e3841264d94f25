package usecase

const (
	cacheKeyPrefix  = "aass:"
	SessionFilesKey = cacheKeyPrefix + "files"
)

func ExtractedTextKey(id string) string {
	return cacheKeyPrefix + "extracted:" + id
}

func SummaryKey(id string) string {
	return cacheKeyPrefix + "summary:" + id
}

func AnalysisKey(id string) string {
	return cacheKeyPrefix + "analysis:" + id
}
