// Package checkpoint persists crawl progress so interrupted jobs can be
// resumed. One checkpoint file per risk records which source URLs have
// already been stored; on resume those URLs are pre-marked as downloaded
// and do not consume budget again.
package checkpoint
