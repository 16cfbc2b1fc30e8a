// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Id int

const (
	ModuleNotFoundId Id = iota + 1
	InvalidModuleNameId
	BadCacheFormatId
	CannotReinitId
	ExtensionNotRegisteredId
	NotAModuleId
	CompileFailedId
	ExecutionFailedId
	LoadFailedId
	ConfigLoadFailedId
	RuntimeNotInitializedId
)

type MarkdownMsg string

type HttpLink string

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink
	extLinks []HttpLink // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

// Render renders the guide with the glamour style at stylePath
// ("dark", "light", "notty" or a JSON style file).
func (i *Issue) Render(stylePath string) (string, error) {
	md := string(i.mdMsg)
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		md += "\n\n## See also\n"
		for _, link := range i.docLinks {
			md += "\n- <" + string(link) + ">"
		}
		for _, link := range i.extLinks {
			md += "\n- <" + string(link) + ">"
		}
	}
	return render(md, stylePath)
}

var (
	render = glamour.Render

	moduleNotFoundIssue = &Issue{
		id: ModuleNotFoundId,
		mdMsg: `
# No module with that name!

The name was not in the builtin or frozen tables, and no directory on the
search path holds a matching file.

## Things you can try:
- Print the search path and the files that were probed:
~~~
$ modload resolve -v NAME
~~~

- Add the directory holding the module:
~~~
$ MODLOAD_PATH=+/path/to/modules modload import NAME
~~~

- Or set it permanently in your config:
~~~cue
search_path: ["/path/to/modules"]
~~~`,
	}

	invalidModuleNameIssue = &Issue{
		id: InvalidModuleNameId,
		mdMsg: `
# Invalid module name!

Module names are plain file stems. They cannot be empty and cannot contain
path separators or ` + "`..`" + `.

## Things you can try:
- Use ` + "`greet`" + ` rather than ` + "`lib/greet.msh`" + `
- Put the module's directory on the search path instead`,
	}

	badCacheFormatIssue = &Issue{
		id: BadCacheFormatId,
		mdMsg: `
# Unusable compiled module!

A compiled file (or frozen body) was written by a different format version
or is corrupt, and there is no source to rebuild it from.

## Things you can try:
- Inspect the header:
~~~
$ modload cache inspect FILE.mshc
~~~

- Recompile from the original source:
~~~
$ modload compile --force DIR
~~~`,
	}

	cannotReinitIssue = &Issue{
		id: CannotReinitId,
		mdMsg: `
# This builtin cannot be reloaded!

Some builtin modules are populated by the host itself and have no
initializer to run again.

## Things you can try:
- Reload the modules that depend on it instead`,
	}

	extensionNotRegisteredIssue = &Issue{
		id: ExtensionNotRegisteredId,
		mdMsg: `
# Extension did not register its module!

The native library was opened, but its entry point is missing, failed, or
registered a module under a different name.

## Things you can try:
- Export an entry point named after the module:
~~~go
func Init_greet(register extension.RegisterFunc) error {
	return register("greet", map[string]any{"greeting": "hello"})
}
~~~

- Build it as a plugin whose file name matches:
~~~
$ go build -buildmode=plugin -o greetmodule.so ./greet
~~~`,
	}

	notAModuleIssue = &Issue{
		id: NotAModuleId,
		mdMsg: `
# Only imported modules can be reloaded!

Reload takes a module that is currently registered. Import it first.

## Things you can try:
~~~
$ modload import NAME
~~~`,
	}

	compileFailedIssue = &Issue{
		id: CompileFailedId,
		mdMsg: `
# The module source does not compile!

Module bodies are shell scripts (bash dialect). The error above points at
the line and column of the problem.

## Things you can try:
- Check quoting and matching ` + "`fi`" + `, ` + "`done`" + ` and ` + "`esac`" + `
- Compile without importing to iterate faster:
~~~
$ modload compile DIR
~~~`,
	}

	executionFailedIssue = &Issue{
		id: ExecutionFailedId,
		mdMsg: `
# The module body failed!

The module stays registered with whatever it bound before failing, so a
later import returns that partial module.

## Things you can try:
- Make sure the body's last command succeeds
- Check that every ` + "`import`" + ` in the body names a reachable module
- Run with ` + "`--verbose`" + ` to trace every import`,
	}

	loadFailedIssue = &Issue{
		id: LoadFailedId,
		mdMsg: `
# The module file could not be loaded!

The file was found but could not be read or opened.

## Things you can try:
- Check file permissions
- For native extensions, check that the plugin was built with the same
  Go version and dependency versions as modload`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

## Things you can try:
- Check the syntax of your config file:
~~~
$ modload config path
~~~

- Reset to defaults:
~~~
$ modload config init --force
~~~

## Example config:
~~~cue
search_path: ["~/modules"]
write_cache: true
ui: {
  verbose: false
}
~~~`,
	}

	runtimeNotInitializedIssue = &Issue{
		id: RuntimeNotInitializedId,
		mdMsg: `
# The import runtime is not running!

The runtime was used before Init or after Teardown. This is a bug in the
host embedding the loader.`,
	}

	issues = map[Id]*Issue{
		moduleNotFoundIssue.Id():         moduleNotFoundIssue,
		invalidModuleNameIssue.Id():      invalidModuleNameIssue,
		badCacheFormatIssue.Id():         badCacheFormatIssue,
		cannotReinitIssue.Id():           cannotReinitIssue,
		extensionNotRegisteredIssue.Id(): extensionNotRegisteredIssue,
		notAModuleIssue.Id():             notAModuleIssue,
		compileFailedIssue.Id():          compileFailedIssue,
		executionFailedIssue.Id():        executionFailedIssue,
		loadFailedIssue.Id():             loadFailedIssue,
		configLoadFailedIssue.Id():       configLoadFailedIssue,
		runtimeNotInitializedIssue.Id():  runtimeNotInitializedIssue,
	}
)

func Values() []*Issue {
	return maps.Values(issues)
}

func Get(id Id) *Issue {
	return issues[id]
}
