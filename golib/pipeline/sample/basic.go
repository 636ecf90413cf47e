package sample

// FilePath is a local path or s3 uri of an input file
type FilePath string

// SampleTag implements pipeline.Sample
func (FilePath) SampleTag() {}
