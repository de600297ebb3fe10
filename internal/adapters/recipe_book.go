package adapters

import (
	"fmt"
	"os"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"
)

// Recipe describes one allowlisted build procedure. Only recipes in
// the book can ever be dispatched; a job naming an unknown recipe is
// rejected before any sandbox is provisioned.
type Recipe struct {
	ID      string   `yaml:"id"`
	Command []string `yaml:"command"`
	// Output is the artifact path the command must produce, relative
	// to the sandbox working directory.
	Output string `yaml:"output"`
	// AllowedHosts is the explicit network allowlist (dependency
	// mirrors) handed to the sandbox runtime.
	AllowedHosts []string `yaml:"allowed_hosts"`
}

type RecipeBook struct {
	recipes map[string]Recipe
}

type recipeFile struct {
	Recipes []Recipe `yaml:"recipes"`
}

func LoadRecipeBook(path string) (RecipeBook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RecipeBook{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to read recipe book").
			WithCause(err)
	}
	var file recipeFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return RecipeBook{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("failed to parse recipe book").
			WithCause(err)
	}
	return NewRecipeBook(file.Recipes)
}

func NewRecipeBook(recipes []Recipe) (RecipeBook, error) {
	book := RecipeBook{recipes: make(map[string]Recipe, len(recipes))}
	for _, r := range recipes {
		id := strings.TrimSpace(r.ID)
		if id == "" || len(r.Command) == 0 || strings.TrimSpace(r.Output) == "" {
			return RecipeBook{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg(fmt.Sprintf("recipe %q must set id, command and output", r.ID))
		}
		if _, dup := book.recipes[id]; dup {
			return RecipeBook{}, errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg(fmt.Sprintf("duplicate recipe: %s", id))
		}
		book.recipes[id] = r
	}
	return book, nil
}

func (b RecipeBook) Lookup(id string) (Recipe, bool) {
	r, ok := b.recipes[id]
	return r, ok
}
