package validate

// ContentTypeCUE marks a library whose content is prepended to CUE
// validators.
const ContentTypeCUE = "text/x-cue"

// StdLibraryName is the library registered by session initialization.
const StdLibraryName = "nopg/std"

// StdLibrary holds shared definitions for custom validators.
const StdLibrary = `// nopg standard definitions.
#NonEmptyString: string & !=""
#PositiveInt:    int & >0
#NonNegative:    number & >=0
#Email:          =~"^[^@\\s]+@[^@\\s]+\\.[^@\\s]+$"
#ISODate:        =~"^[0-9]{4}-[0-9]{2}-[0-9]{2}"
`
