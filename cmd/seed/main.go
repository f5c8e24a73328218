package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/laserostop/cm-backend/internal/storage/models"
	"github.com/laserostop/cm-backend/internal/storage/sqlite"
	"github.com/laserostop/cm-backend/pkg/config"
	appLogger "github.com/laserostop/cm-backend/pkg/logger"
)

type seedExample struct {
	inputText   string
	idealAnswer string
	category    string
	sensitivity string
}

// Sample gold examples in Tunisian dialect, used for development and as
// the starting eval set.
var sampleExamples = []seedExample{
	// Booking
	{
		inputText:   "Salam, nheb nhez rendez-vous pour arrêter de fumer",
		idealAnswer: "Ahla! Barcha farhine bik. Pour réserver rendez-vous, tnajem tséléphéné 3ala [phone] wala tb3athlna message privé. Kifech t7eb?",
		category:    "booking",
		sensitivity: models.SensitivityNormal,
	},
	{
		inputText:   "Kifech nhez rendez-vous?",
		idealAnswer: "Bassite! Tnajem tséléphéné direct 3ala [phone] wala tb3athlna message 3al Facebook. N7ébou nsem3ouk w net3arfou 3lik akthar.",
		category:    "booking",
		sensitivity: models.SensitivityNormal,
	},
	{
		inputText:   "Je veux prendre rdv, comment faire?",
		idealAnswer: "Marhba bik! Pour prendre rendez-vous, tnajem tsalli 3al [phone] wala tb3athlna message. Ena nhébou n3awnouk bech taqta3 tabac.",
		category:    "booking",
		sensitivity: models.SensitivityNormal,
	},

	// Price
	{
		inputText:   "Chhal thot les séances?",
		idealAnswer: "Les séances t3andna prix raisonnable. Pour les détails w les tarifs, tnajem tsalli 3al [phone] w nemchiwlek kollech. Chaque cas unique donc prix yetbaddel selon nombre de séances.",
		category:    "price",
		sensitivity: models.SensitivityNormal,
	},
	{
		inputText:   "C'est cher le traitement?",
		idealAnswer: "Le prix taa3 le traitement mouch ghali rapport au bénéfice taa3 l'arrêt tabac. Tnajem tsalli w n9ouloulek les détails. L'investissement fi sehtek yestahel!",
		category:    "price",
		sensitivity: models.SensitivityNormal,
	},

	// Process
	{
		inputText:   "Kifech ykhadem le laser?",
		idealAnswer: "Le laser ykhadem par stimulation de points d'acupuncture sans douleur. Yekhdem 3ala réduire l'envie de fumer w les symptômes taa3 le manque. Barcha nés yestafedhw men première séance!",
		category:    "process",
		sensitivity: models.SensitivityNormal,
	},
	{
		inputText:   "Combien de séances il faut?",
		idealAnswer: "3adaten 1 à 3 séances selon كل واحد w motivation mte3ou. Barcha nés yaqt3ou men première séance! Ama 9addech ykounu 3andhom besoin de suivi.",
		category:    "process",
		sensitivity: models.SensitivityNormal,
	},
	{
		inputText:   "Est-ce que ça fait mal?",
		idealAnswer: "Absolument makanech wejja3! Le laser ma3andouch contact avec la peau w ma ت7éséch بشي. C'est relaxant w confortable.",
		category:    "process",
		sensitivity: models.SensitivityNormal,
	},

	// Effectiveness
	{
		inputText:   "Est-ce que ça marche vraiment?",
		idealAnswer: "Oui! Barcha nés نجحو bech yaqt3ou tabac avec le laser. Le taux de réussite 3ali w'allah ama lazem motivation w volonté mennek! Le laser y3awnek ama enti esor esséyés.",
		category:    "effectiveness",
		sensitivity: models.SensitivityNormal,
	},
	{
		inputText:   "Chkoun jreb w n7all?",
		idealAnswer: "Barcha clients mte3na n7allou w réussiw bech yaqt3ou tabac définitivement! Chacun 3andou story mte3ou ama l'important hiya motivation w engagement.",
		category:    "effectiveness",
		sensitivity: models.SensitivityNormal,
	},

	// Medical contraindications
	{
		inputText:   "أنا حامل، نجم نعمل laser?",
		idealAnswer: "Pour les femmes enceintes, c'est très important تستشيري طبيبك avant. Ena منجموش نعطيوك conseil médical. Votre médecin هو اللي يقرر si c'est appropriate pour votre situation.",
		category:    "contraindication",
		sensitivity: models.SensitivityMedicalRisk,
	},
	{
		inputText:   "J'ai du diabète, je peux faire le laser?",
		idealAnswer: "Pour les conditions médicales comme le diabète, lazem tstachéri طبيبك first. Ena ma نجموش نعطيو diagnostic wala conseil médical. Votre docteur est le mieux placé pour vous conseiller.",
		category:    "contraindication",
		sensitivity: models.SensitivityMedicalRisk,
	},
	{
		inputText:   "Je prends des médicaments, c'est compatible?",
		idealAnswer: "Si vous prenez des médicaments, il faut absolument en parler maa طبيبك avant. Ena manajmouch نقولوك yes or no car c'est médical decision. Votre médecin ynajem yعطيك le bon conseil.",
		category:    "contraindication",
		sensitivity: models.SensitivityMedicalRisk,
	},

	// General info
	{
		inputText:   "Winou l'adresse mte3kom?",
		idealAnswer: "L'adresse mte3na fi Tunis (détails exacts fi context). Tnajem تجي direct wala tsalli 9bal 3al [phone] bech تتأكد men les horaires.",
		category:    "info",
		sensitivity: models.SensitivityNormal,
	},
	{
		inputText:   "Quels sont vos horaires?",
		idealAnswer: "Les horaires mte3na (détails fi context). Pour rendez-vous, tsalli 3al [phone] w نحددولك wقت يناسبك.",
		category:    "info",
		sensitivity: models.SensitivityNormal,
	},
}

func main() {
	clear := flag.Bool("clear", false, "delete existing eval examples before seeding")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	client, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer client.Close()

	if err := client.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	if *clear {
		deleted, err := client.DeleteEvalExamples()
		if err != nil {
			appLogger.Fatal("Failed to clear eval examples", zap.Error(err))
		}
		appLogger.Info("Cleared existing eval examples", zap.Int64("deleted", deleted))
	}

	now := time.Now().UTC()
	byCategory := make(map[string]int)

	for _, s := range sampleExamples {
		idealAnswer := s.idealAnswer
		category := s.category

		example := models.EvalExample{
			InputText:   s.inputText,
			IdealAnswer: &idealAnswer,
			Category:    &category,
			Sensitivity: s.sensitivity,
			CreatedAt:   now,
		}

		if err := client.InsertEvalExample(&example); err != nil {
			appLogger.Fatal("Failed to insert eval example",
				zap.String("category", s.category),
				zap.Error(err),
			)
		}
		byCategory[s.category]++
	}

	fmt.Printf("Seeded %d evaluation examples\n", len(sampleExamples))
	for category, count := range byCategory {
		fmt.Printf("  %-18s %d\n", category, count)
	}
}
